package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geektools.dev/cli/internal/config"
	"geektools.dev/cli/internal/core/domain"
	"geektools.dev/cli/internal/infrastructure/marketplace"
	"geektools.dev/cli/internal/testutil"
)

// cliEnv is an isolated home with its own plugins and temp directories
type cliEnv struct {
	home       string
	pluginsDir string
	tempDir    string
	archives   string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	root := t.TempDir()
	env := &cliEnv{
		home:     filepath.Join(root, "home"),
		tempDir:  filepath.Join(root, "tmp"),
		archives: filepath.Join(root, "archives"),
	}
	env.pluginsDir = filepath.Join(env.home, config.DefaultHomeName, "plugins")
	for _, dir := range []string{env.home, env.tempDir, env.archives} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}

	t.Setenv("HOME", env.home)
	for _, key := range []string{
		"CONFIG", "HOME", "PLUGINS_DIR", "WORK_DIR", "LOG_LEVEL", "LOG_FORMAT",
		"MARKETPLACE_URL", "DEBUG", "HTTP_TIMEOUT", "SCAN_DIRS", "RETRY_MAX_ATTEMPTS",
		"RETRY_MAX_DELAY", "RETRY_BACKOFF_FACTOR",
	} {
		t.Setenv(config.EnvPrefix+key, "")
	}
	t.Setenv(config.EnvPrefix+"TEMP_DIR", env.tempDir)
	t.Setenv(config.EnvPrefix+"RETRY_INITIAL_DELAY", "1ms")
	return env
}

func (e *cliEnv) archive(t *testing.T, id string, scripts ...string) string {
	t.Helper()
	return testutil.NewPluginArchive(testutil.Manifest(id, scripts...)).Write(t, e.archives, id+".tar.gz")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := &app{stdin: strings.NewReader(""), stdout: &out, stderr: &out}
	root := newRootCommand(a)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestPlugins_Lifecycle(t *testing.T) {
	env := newCLIEnv(t)

	out := mustRun(t, "plugins", "install", env.archive(t, "hello", "greet"))
	assert.Contains(t, out, "Installed hello 1.0.0 (1 scripts)")

	out = mustRun(t, "plugins", "list")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "enabled")

	out = mustRun(t, "plugins", "scripts")
	assert.Contains(t, out, "greet - hello plugin")
	assert.Contains(t, out, "hello:greet.sh")

	mustRun(t, "plugins", "disable", "hello")
	out = mustRun(t, "plugins", "list")
	assert.Contains(t, out, "disabled")
	out = mustRun(t, "scripts", "list")
	assert.NotContains(t, out, "hello:greet.sh")

	mustRun(t, "plugins", "enable", "hello")
	out = mustRun(t, "scripts", "list")
	assert.Contains(t, out, "hello:greet.sh")
	assert.Contains(t, out, "sysinfo.sh")

	out = mustRun(t, "plugins", "uninstall", "hello")
	assert.Contains(t, out, "Uninstalled hello")
	out = mustRun(t, "plugins", "list")
	assert.Contains(t, out, "No plugins installed.")
	assert.NoDirExists(t, filepath.Join(env.pluginsDir, "hello"))
}

func TestPluginsInstall_Failures(t *testing.T) {
	env := newCLIEnv(t)
	archive := env.archive(t, "hello", "greet")

	_, err := run(t, "plugins", "install")
	assert.EqualError(t, err, "requires an archive path or --url")

	_, err = run(t, "plugins", "install", archive, "--url", "x.tar.gz")
	assert.Error(t, err)

	mustRun(t, "plugins", "install", archive)
	_, err = run(t, "plugins", "install", archive)
	assert.True(t, errors.Is(err, domain.ErrPluginAlreadyInstalled))
	assert.Equal(t, 2, exitCode(err))

	_, err = run(t, "plugins", "install", filepath.Join(env.archives, "missing.tar.gz"))
	assert.True(t, errors.Is(err, domain.ErrArchiveNotFound))
}

func TestPluginsInstall_FromMarketplace(t *testing.T) {
	env := newCLIEnv(t)
	data := testutil.NewPluginArchive(testutil.Manifest("remote", "fetch")).Bytes()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/plugins/remote.tar.gz" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer server.Close()
	t.Setenv(config.EnvPrefix+"MARKETPLACE_URL", server.URL+"/plugins")

	out := mustRun(t, "plugins", "install", "--url", "remote.tar.gz")
	assert.Contains(t, out, "Installed remote 1.0.0")

	leftovers, err := filepath.Glob(filepath.Join(env.tempDir, marketplace.DownloadPrefix+"*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "downloaded archive must be removed")

	_, err = run(t, "plugins", "install", "--url", "absent.tar.gz")
	assert.True(t, errors.Is(err, domain.ErrNetworkFailed))
}

func TestPluginsUninstall_Unknown(t *testing.T) {
	newCLIEnv(t)

	_, err := run(t, "plugins", "uninstall", "ghost")
	assert.True(t, errors.Is(err, domain.ErrPluginNotInstalled))
}

func TestPluginsReconcile(t *testing.T) {
	env := newCLIEnv(t)
	mustRun(t, "plugins", "install", env.archive(t, "kept", "run"))
	require.NoError(t, os.MkdirAll(filepath.Join(env.pluginsDir, "stale"), 0o755))

	out := mustRun(t, "plugins", "reconcile")
	assert.Contains(t, out, "Orphaned directories: stale")
	assert.DirExists(t, filepath.Join(env.pluginsDir, "stale"))

	out = mustRun(t, "plugins", "reconcile", "--remove")
	assert.Contains(t, out, "Removed 1 orphaned directories: stale")
	assert.NoDirExists(t, filepath.Join(env.pluginsDir, "stale"))
	assert.DirExists(t, filepath.Join(env.pluginsDir, "kept"))

	out = mustRun(t, "plugins", "reconcile")
	assert.Contains(t, out, "No orphaned plugin directories.")
}

func TestPluginsScan(t *testing.T) {
	env := newCLIEnv(t)
	testutil.NewPluginArchive(testutil.Manifest("net", "ping")).Write(t, env.archives, "net-tools-v1.2.0.tar.gz")
	require.NoError(t, os.WriteFile(filepath.Join(env.archives, "notes.txt"), []byte("x"), 0o644))

	out := mustRun(t, "plugins", "scan", env.archives)
	assert.Contains(t, out, "net-tools")
	assert.Contains(t, out, "v1.2.0")
	assert.NotContains(t, out, "notes.txt")

	out = mustRun(t, "plugins", "scan", filepath.Join(env.archives, "nowhere"))
	assert.Contains(t, out, "No plugin archives found.")
}

func TestScriptsResolve_Builtin(t *testing.T) {
	newCLIEnv(t)

	out := mustRun(t, "scripts", "resolve", "network_info.sh")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "1 colors.sh")
	assert.Contains(t, lines[1], "2 common.sh")
	assert.Contains(t, lines[2], "ip_lookup.link (data)")
	assert.Contains(t, lines[3], "3 network_info.sh")

	_, err := run(t, "scripts", "resolve", "nope.sh")
	assert.True(t, errors.Is(err, domain.ErrScriptNotFound))
}

func TestScriptsResolve_DisabledPlugin(t *testing.T) {
	env := newCLIEnv(t)
	mustRun(t, "plugins", "install", env.archive(t, "hello", "greet"))
	mustRun(t, "plugins", "disable", "hello")

	_, err := run(t, "scripts", "resolve", "hello:greet")
	assert.ErrorContains(t, err, "plugin is disabled")
}

func TestConfig_FlagsOverride(t *testing.T) {
	newCLIEnv(t)
	dir := t.TempDir()

	out := mustRun(t, "--plugins-dir", dir, "--log-level", "error", "config", "show")
	assert.Contains(t, out, fmt.Sprintf("plugins_dir: %s", dir))
	assert.Contains(t, out, "log_level: error")

	out = mustRun(t, "config", "path")
	assert.Contains(t, out, "using defaults")
}

func TestConfig_InvalidFileFails(t *testing.T) {
	newCLIEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("unknown_key: 1\n"), 0o644))

	_, err := run(t, "--config", path, "plugins", "list")
	assert.ErrorContains(t, err, "failed to load configuration")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
	assert.Equal(t, 2, exitCode(fmt.Errorf("wrapped: %w", domain.PluginNotInstalled("x"))))
	assert.Equal(t, 130, exitCode(context.Canceled))
}

func TestValidate(t *testing.T) {
	env := newCLIEnv(t)
	mustRun(t, "plugins", "install", env.archive(t, "kept", "run"))

	out := mustRun(t, "validate", env.archive(t, "fresh", "go"))
	assert.Contains(t, out, "1 installed")
	assert.Contains(t, out, "fresh 1.0.0 (1 scripts)")
	assert.NoDirExists(t, filepath.Join(env.pluginsDir, "fresh"))

	require.NoError(t, os.MkdirAll(filepath.Join(env.pluginsDir, "stale"), 0o755))
	require.NoError(t, os.RemoveAll(filepath.Join(env.pluginsDir, "kept")))

	out, err := run(t, "validate")
	assert.ErrorIs(t, err, errValidationFailed)
	assert.Contains(t, out, "missing directories for kept")
	assert.Contains(t, out, "unregistered directories stale")
}
