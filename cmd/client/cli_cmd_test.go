package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bundlesync/bundlesync/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLI_Version(t *testing.T) {
	out, code := runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, version.Detailed(), strings.TrimSpace(stripANSI(out)))
}

func TestCLI_ResolveRequiresID(t *testing.T) {
	out, code := runCLI(t, "resolve")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "at least one id")
}

func TestCLI_ResolvePassThrough(t *testing.T) {
	tmp := t.TempDir()
	inner := filepath.Join(tmp, "app")
	require.NoError(t, os.MkdirAll(inner, 0o755))

	out, code := runCLI(t,
		"--config", filepath.Join(tmp, "config.json"),
		"--inner", inner,
		"--datadir", filepath.Join(tmp, "data"),
		"resolve", "--json", "unknown.bundle",
	)
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, `"source": "passthrough"`)
	assert.Contains(t, out, `"path": "unknown.bundle"`)
}
