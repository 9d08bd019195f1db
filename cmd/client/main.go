package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/bundlesync/bundlesync/internal/client"
	"github.com/bundlesync/bundlesync/internal/client/config"
	bsync "github.com/bundlesync/bundlesync/internal/client/sync"
	"github.com/bundlesync/bundlesync/internal/utils"
	"github.com/bundlesync/bundlesync/internal/version"
	"github.com/dustin/go-humanize"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "BUNDLESYNC"

var (
	home, _        = os.UserHomeDir()
	defaultLogFile = filepath.Join(home, ".bundlesync", "logs", "bundlesync.log")
)

var rootCmd = &cobra.Command{
	Use:     "bundlesync",
	Short:   "Keep the local bundle store in step with the distribution server",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		cmd.SilenceUsage = true

		c, err := client.New(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := c.Sync(cmd.Context())
		if res != nil {
			printResult(cmd, res)
		}
		return err
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("config", "c", config.DefaultConfigPath, "config file")
	flags.StringP("server", "s", config.DefaultServerURL, "distribution server url")
	flags.StringP("platform", "p", config.DefaultPlatform, "platform root on the server")
	flags.StringP("inner", "i", "", "bundled (read-only) store directory")
	flags.StringP("datadir", "d", config.DefaultDataDir, "data directory, holds the writable store")
	flags.String("app-version", config.DefaultAppVersion, "version of the installed application")
	flags.Bool("debug", false, "log debug messages to stdout")
}

func main() {
	logFile := defaultLogFile
	if err := utils.EnsureParent(logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	// Create new log file for this instance
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	stdoutLevel := slog.LevelInfo
	if debugRequested(os.Args[1:]) {
		stdoutLevel = slog.LevelDebug
	}

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      stdoutLevel,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	logInterceptor := utils.NewLogInterceptor(file)
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// time is added by the log interceptor
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges, lowest first: defaults, the config file, BUNDLESYNC_* env and flags.
// The result is not validated.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	path := resolveConfigPath(cmd)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", path, err)
		}
	}

	def := config.Default()
	v.SetDefault("server_url", def.ServerURL)
	v.SetDefault("platform", def.Platform)
	v.SetDefault("inner_dir", def.InnerDir)
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("app_version", def.AppVersion)
	v.SetDefault("version_timeout", def.VersionTimeout)
	v.SetDefault("download_timeout", def.DownloadTimeout)
	v.SetDefault("retry_count", def.RetryCount)
	v.SetDefault("sync_interval", def.SyncInterval)
	v.SetDefault("control_plane.addr", def.ControlPlane.Addr)
	v.SetDefault("control_plane.token", def.ControlPlane.Token)

	flags := cmd.Root().PersistentFlags()
	v.BindPFlag("server_url", flags.Lookup("server"))
	v.BindPFlag("platform", flags.Lookup("platform"))
	v.BindPFlag("inner_dir", flags.Lookup("inner"))
	v.BindPFlag("data_dir", flags.Lookup("datadir"))
	v.BindPFlag("app_version", flags.Lookup("app-version"))

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	cfg.Path = path
	return &cfg, nil
}

// debugRequested peeks at the args before cobra parses them, logging is set up first
func debugRequested(args []string) bool {
	for _, a := range args {
		if a == "--debug" || a == "--debug=true" {
			return true
		}
	}
	return false
}

func printResult(cmd *cobra.Command, res *bsync.Result) {
	out := cmd.OutOrStdout()
	state := string(res.State)
	switch {
	case res.Error != "" && !res.Degraded:
		state = red(state)
	case res.Degraded:
		state = yellow(state)
	default:
		state = green(state)
	}

	fmt.Fprintf(out, "State:      %s\n", state)
	fmt.Fprintf(out, "Local:      %s\n", cyan(orNone(res.LocalTag.String())))
	fmt.Fprintf(out, "Remote:     %s\n", cyan(orNone(res.RemoteTag.String())))
	if !res.CommittedTag.IsZero() {
		fmt.Fprintf(out, "Committed:  %s\n", cyan(res.CommittedTag.String()))
	}
	fmt.Fprintf(out, "Downloaded: %d files, %s\n", len(res.Downloaded), humanize.Bytes(uint64(res.DownloadedBytes)))
	if len(res.Adopted) > 0 {
		fmt.Fprintf(out, "Adopted:    %d files\n", len(res.Adopted))
	}
	if len(res.Removed) > 0 {
		fmt.Fprintf(out, "Removed:    %d files\n", len(res.Removed))
	}
	for _, f := range res.Failed {
		fmt.Fprintf(out, "%s %s: %s\n", red("FAILED"), f.Name, f.Error)
	}
	if res.Error != "" {
		fmt.Fprintf(out, "%s %s\n", yellow("NOTE"), res.Error)
	}
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
