//go:build unix

package process

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestRunScript_StreamsOutputAndEnv(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exec := NewExecutor(Options{Env: []string{"PATH=" + os.Getenv("PATH")}, Stdout: &stdout, Stderr: &stderr}, nil)

	script := writeScript(t, "echo \"dir=$GEEKTOOLS_SCRIPTS_DIR\"\necho oops >&2\n")
	err := exec.RunScript(context.Background(), script, map[string]string{"GEEKTOOLS_SCRIPTS_DIR": "/opt/scripts"})

	require.NoError(t, err)
	assert.Equal(t, "dir=/opt/scripts\n", stdout.String())
	assert.Equal(t, "oops\n", stderr.String())
}

func TestRunScript_RunsInScriptDirectory(t *testing.T) {
	var stdout bytes.Buffer
	exec := NewExecutor(Options{Stdout: &stdout}, nil)

	script := writeScript(t, "pwd\n")
	require.NoError(t, exec.RunScript(context.Background(), script, nil))

	want, err := filepath.EvalSymlinks(filepath.Dir(script))
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(string(bytes.TrimSpace(stdout.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRunScript_NonZeroExit(t *testing.T) {
	exec := NewExecutor(Options{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}, nil)

	err := exec.RunScript(context.Background(), writeScript(t, "exit 3\n"), nil)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, err.Error(), "script.sh exited with status 3")
}

func TestRunScript_Cancelled(t *testing.T) {
	exec := NewExecutor(Options{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := exec.RunScript(ctx, writeScript(t, "sleep 10\n"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRunScript_MissingShell(t *testing.T) {
	exec := NewExecutor(Options{Shell: "/definitely/not/a/shell"}, nil)

	err := exec.RunScript(context.Background(), writeScript(t, "true\n"), nil)
	require.Error(t, err)
	var exitErr *ExitError
	assert.False(t, errors.As(err, &exitErr))
}
