package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/safekart/safekart/internal/devserver"
	"github.com/safekart/safekart/internal/exitcode"
)

type result struct {
	stdout string
	stderr string
	code   int
}

// runCLI runs one invocation with a fresh command tree, the way main does.
func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	a := newApp()
	root := a.command()

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--no-input", "--no-color"}, args...))

	err := a.execute(context.Background(), root)
	return result{stdout: out.String(), stderr: errOut.String(), code: exitcode.DetermineExitCode(err)}
}

// setupHome points HOME at a temp dir so config and session files stay
// inside the test.
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, env := range os.Environ() {
		if name, _, _ := strings.Cut(env, "="); strings.HasPrefix(name, "SAFEKART_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	return home
}

// startAPI starts a dev server and returns its API base URL.
func startAPI(t *testing.T) string {
	t.Helper()
	srv, err := devserver.New(devserver.Config{Secret: "test-secret", BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL + devserver.APIPrefix + "/"
}

func TestAuthLifecycle(t *testing.T) {
	home := setupHome(t)
	api := startAPI(t)

	res := runCLI(t, "secret1\n", "--api-url", api, "auth", "register",
		"--email", "ada@safekart.test", "--name", "Ada Lovelace", "--password-stdin")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Account created for ada@safekart.test")
	assert.Contains(t, res.stdout, "Welcome, Ada Lovelace!")
	assert.FileExists(t, filepath.Join(home, ".safekart", "session.json"))

	res = runCLI(t, "", "--api-url", api, "--format", "json", "auth", "status")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	var view map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &view))
	assert.Equal(t, "ada@safekart.test", view["email"])
	assert.Equal(t, "customer", view["role"])
	assert.Equal(t, false, view["expired"])
	assert.NotContains(t, res.stdout, "access_token")

	res = runCLI(t, "", "--api-url", api, "auth", "token")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Len(t, strings.Split(strings.TrimSpace(res.stdout), "."), 3)

	res = runCLI(t, "", "--api-url", api, "auth", "status", "--refresh")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Ada Lovelace")

	res = runCLI(t, "", "--api-url", api, "auth", "logout")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Signed out ada@safekart.test")

	res = runCLI(t, "", "--api-url", api, "auth", "status")
	assert.Equal(t, exitcode.AuthError, res.code)
	assert.Contains(t, res.stderr, "AUTH-001")

	res = runCLI(t, "", "--api-url", api, "auth", "logout")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Not signed in")

	res = runCLI(t, "secret1\n", "--api-url", api, "auth", "login",
		"--email", "ada@safekart.test", "--password-stdin")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Signed in as ada@safekart.test")
	assert.NotContains(t, res.stderr, "Replacing the stored session")

	res = runCLI(t, "secret1\n", "--api-url", api, "--log-level", "info", "auth", "login",
		"--email", "ada@safekart.test", "--password-stdin")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Contains(t, res.stderr, "Replacing the stored session")

	res = runCLI(t, "", "--api-url", api, "auth", "refresh")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Profile updated")
}

func TestAuthLoginInvalidCredentials(t *testing.T) {
	setupHome(t)
	api := startAPI(t)

	res := runCLI(t, "", "--api-url", api, "auth", "register",
		"--email", "ada@safekart.test", "--password", "secret1")
	require.Equal(t, exitcode.Success, res.code, res.stderr)

	res = runCLI(t, "", "--api-url", api, "auth", "login",
		"--email", "ada@safekart.test", "--password", "wrong12")
	assert.Equal(t, exitcode.AuthError, res.code)
	assert.Contains(t, res.stderr, "Invalid email or password")
	assert.Contains(t, res.stderr, "forgot-password")
}

func TestAuthRegisterConflict(t *testing.T) {
	setupHome(t)
	api := startAPI(t)

	args := []string{"--api-url", api, "auth", "register", "--email", "ada@safekart.test", "--password", "secret1"}
	require.Equal(t, exitcode.Success, runCLI(t, "", args...).code)

	res := runCLI(t, "", args...)
	assert.Equal(t, exitcode.AuthError, res.code)
	assert.Contains(t, res.stderr, "already exists")
}

func TestAuthInputValidation(t *testing.T) {
	setupHome(t)
	api := startAPI(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "login bad email",
			args: []string{"auth", "login", "--email", "nope", "--password", "secret1"},
			want: "Please enter a valid email",
		},
		{
			name: "login missing password",
			args: []string{"auth", "login", "--email", "ada@safekart.test"},
			want: "Password is required",
		},
		{
			name: "register password mismatch",
			args: []string{"auth", "register", "--email", "ada@safekart.test", "--password", "secret1", "--confirm-password", "secret2"},
			want: "Passwords do not match",
		},
		{
			name: "register bad role",
			args: []string{"auth", "register", "--email", "ada@safekart.test", "--password", "secret1", "--role", "admin"},
			want: "Role must be customer or vendor",
		},
		{
			name: "forgot password without email",
			args: []string{"auth", "forgot-password"},
			want: "Email is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, "", append([]string{"--api-url", api}, tt.args...)...)
			assert.Equal(t, exitcode.UsageError, res.code, res.stderr)
			assert.Contains(t, res.stderr, "AUTH-002")
			assert.Contains(t, res.stderr, tt.want)
		})
	}
}

func TestAuthForgotPassword(t *testing.T) {
	setupHome(t)
	api := startAPI(t)

	res := runCLI(t, "", "--api-url", api, "auth", "forgot-password", "--email", "nobody@safekart.test")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Password reset link sent to nobody@safekart.test")
}

func TestAuthServerUnavailable(t *testing.T) {
	setupHome(t)
	ts := httptest.NewServer(nil)
	api := ts.URL + devserver.APIPrefix + "/"
	ts.Close()

	res := runCLI(t, "", "--api-url", api, "auth", "login", "--email", "ada@safekart.test", "--password", "secret1")
	assert.Equal(t, exitcode.NetworkError, res.code, res.stderr)
}

func TestMemoryStoreForgetsSession(t *testing.T) {
	setupHome(t)
	api := startAPI(t)

	res := runCLI(t, "", "--api-url", api, "--store", "memory", "auth", "register",
		"--email", "ada@safekart.test", "--password", "secret1")
	require.Equal(t, exitcode.Success, res.code, res.stderr)

	res = runCLI(t, "", "--api-url", api, "--store", "memory", "auth", "status")
	assert.Equal(t, exitcode.AuthError, res.code)
}

func TestLogoutRemovesUnreadableSession(t *testing.T) {
	home := setupHome(t)
	path := filepath.Join(home, ".safekart", "session.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	res := runCLI(t, "", "auth", "status")
	assert.Equal(t, exitcode.StoreError, res.code)

	res = runCLI(t, "", "auth", "logout")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Signed out")
	assert.NoFileExists(t, path)

	res = runCLI(t, "", "auth", "logout")
	require.Equal(t, exitcode.Success, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Not signed in")
}

func TestUnknownStoreBackend(t *testing.T) {
	setupHome(t)

	res := runCLI(t, "", "--store", "etcd", "auth", "status")
	assert.Equal(t, exitcode.StoreError, res.code)
	assert.Contains(t, res.stderr, "STORE-001")
}

func TestInvalidConfigValue(t *testing.T) {
	setupHome(t)

	res := runCLI(t, "", "--api-url", "not a url", "auth", "status")
	assert.Equal(t, exitcode.ConfigError, res.code)
	assert.Contains(t, res.stderr, "api.url")
}

func TestUnknownFlag(t *testing.T) {
	setupHome(t)

	res := runCLI(t, "", "auth", "login", "--bogus")
	assert.Equal(t, exitcode.UsageError, res.code)
}

func TestUnknownFormat(t *testing.T) {
	setupHome(t)
	api := startAPI(t)

	res := runCLI(t, "", "--api-url", api, "--format", "xml", "auth", "forgot-password", "--email", "ada@safekart.test")
	assert.Equal(t, exitcode.GeneralError, res.code)
	assert.Contains(t, res.stderr, "unknown format")
}
