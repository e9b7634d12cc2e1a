package cmd

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safekart/safekart/internal/config"
	"github.com/safekart/safekart/internal/exitcode"
	"github.com/safekart/safekart/internal/version"
)

func TestConfigCommands(t *testing.T) {
	home := setupHome(t)
	path := filepath.Join(home, ".safekart", "config.yaml")

	res := runCLI(t, "", "config", "path")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Equal(t, path, strings.TrimSpace(res.stdout))

	res = runCLI(t, "", "config", "init")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Wrote "+path)
	assert.FileExists(t, path)

	res = runCLI(t, "", "config", "init")
	assert.Equal(t, exitcode.ConfigError, res.code)
	assert.Contains(t, res.stderr, "--force")

	res = runCLI(t, "", "config", "init", "--force")
	assert.Equal(t, exitcode.Success, res.code, res.stderr)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().API.URL, cfg.API.URL)

	res = runCLI(t, "", "config", "view")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Contains(t, res.stdout, "# source: "+path)
	assert.Contains(t, res.stdout, "backend: file")
}

func TestConfigViewMasksSecrets(t *testing.T) {
	setupHome(t)
	t.Setenv("SAFEKART_STORE_PASSPHRASE", "hunter22")

	res := runCLI(t, "", "--format", "json", "config", "view")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.NotContains(t, res.stdout, "hunter22")

	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &cfg))
	store := cfg["store"].(map[string]any)
	assert.Equal(t, "****", store["passphrase"])
}

func TestConfigFlagOverridesPath(t *testing.T) {
	setupHome(t)
	custom := filepath.Join(t.TempDir(), "custom.yaml")

	res := runCLI(t, "", "--config", custom, "config", "path")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Equal(t, custom, strings.TrimSpace(res.stdout))
}

func TestVersionCommand(t *testing.T) {
	setupHome(t)
	orig := version.Version
	version.Version = "1.2.3"
	t.Cleanup(func() { version.Version = orig })

	res := runCLI(t, "", "version")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Equal(t, "safekart 1.2.3", strings.TrimSpace(res.stdout))

	res = runCLI(t, "", "version", "--verbose")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Contains(t, res.stdout, "SafeKart 1.2.3")

	res = runCLI(t, "", "--format", "json", "version")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &info))
	assert.Equal(t, "1.2.3", info["version"])
}

func TestDoctor(t *testing.T) {
	setupHome(t)
	api := startAPI(t)

	res := runCLI(t, "", "--api-url", api, "--format", "json", "doctor")
	require.Equal(t, exitcode.Success, res.code, res.stderr)

	var report struct {
		Status string `json:"status"`
		Checks map[string]struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &report))
	assert.Equal(t, "healthy", report.Status)
	assert.Equal(t, "healthy", report.Checks["auth-api"].Status)
	assert.Equal(t, "healthy", report.Checks["session-store"].Status)
	assert.Equal(t, "not signed in", report.Checks["session"].Message)

	res = runCLI(t, "", "--api-url", api, "auth", "register", "--email", "ada@safekart.test", "--password", "secret1")
	require.Equal(t, exitcode.Success, res.code, res.stderr)

	res = runCLI(t, "", "--api-url", api, "doctor")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Contains(t, res.stdout, "signed in as ada@safekart.test")
	assert.Contains(t, res.stdout, "Overall: healthy")
}

func TestDoctorReportsUnreachableAPI(t *testing.T) {
	setupHome(t)

	res := runCLI(t, "", "--api-url", "http://127.0.0.1:1/api/v1/", "--timeout", "2s", "doctor")
	assert.Equal(t, exitcode.GeneralError, res.code)
	assert.Contains(t, res.stdout, "Overall: unhealthy")
	assert.Contains(t, res.stderr, "checks failed")
}
