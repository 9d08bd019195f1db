package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bundlesync/bundlesync/internal/server"
	"github.com/bundlesync/bundlesync/internal/utils"
	"github.com/bundlesync/bundlesync/internal/version"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix   = "BUNDLESERVER"
	envFile     = ".env"
	defaultRoot = "./releases"
)

var (
	red   = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
	cyan  = color.New(color.FgHiCyan).SprintFunc()
	gray  = color.New(color.FgHiBlack).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:     "bundleserver",
	Short:   "Build, publish and serve bundle releases",
	Version: version.Detailed(),
	RunE:    runServe,
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the published platform roots (default command)",
		RunE:  runServe,
	}
	addServeFlags(cmd)
	return cmd
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("cert", "c", "", "Path to the certificate file")
	cmd.Flags().StringP("key", "k", "", "Path to the key file")
	cmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	cmd.Flags().String("rate-limit", server.DefaultRateLimit, "Requests per client ip, e.g. 100-S")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true
	slog.Info("bundleserver", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)

	s, err := server.New(cfg)
	if err != nil {
		return err
	}
	defer slog.Info("Bye!")
	return s.Start(cmd.Context())
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "f", "", "Config file (json or yaml)")
	rootCmd.PersistentFlags().StringP("root", "r", defaultRoot, "Distribution root served by the local backend")
	addServeFlags(rootCmd)
	rootCmd.AddCommand(newServeCmd())
}

func main() {
	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	slog.SetDefault(slog.New(stdoutHandler))

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges, lowest first: defaults, the config file, .env and BUNDLESERVER_* env, flags
func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	if utils.FileExists(envFile) {
		// variables already set in the environment win
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()

	if f := cmd.Flag("config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config read '%s': %w", f.Value.String(), err)
		}
	}

	v.SetDefault("http.addr", server.DefaultAddr)
	v.SetDefault("http.cert_file", "")
	v.SetDefault("http.key_file", "")
	v.SetDefault("rate_limit", server.DefaultRateLimit)
	v.SetDefault("blob.backend", "local")
	v.SetDefault("blob.root", defaultRoot)
	v.SetDefault("blob.s3.bucket_name", "")
	v.SetDefault("blob.s3.region", "")
	v.SetDefault("blob.s3.access_key", "")
	v.SetDefault("blob.s3.secret_key", "")
	v.SetDefault("blob.s3.endpoint", "")
	v.SetDefault("blob.s3.use_accelerate", false)

	bindFlag(v, cmd, "http.addr", "bind")
	bindFlag(v, cmd, "http.cert_file", "cert")
	bindFlag(v, cmd, "http.key_file", "key")
	bindFlag(v, cmd, "rate_limit", "rate-limit")
	bindFlag(v, cmd, "blob.root", "root")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg server.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	return &cfg, nil
}

func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if f := cmd.Flag(flag); f != nil {
		v.BindPFlag(key, f)
	}
}
