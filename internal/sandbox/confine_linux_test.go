//go:build linux

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// confinedExecutor skips the test when the host does not allow unprivileged
// user and mount namespaces.
func confinedExecutor(t *testing.T) *Executor {
	t.Helper()
	e := NewExecutor(t.TempDir(), WithFilesystemConfinement(true))
	_, err := e.Execute(context.Background(), Command{Path: "/bin/sh", Args: []string{"-c", "true"}, Dir: t.TempDir()}, Limits{Timeout: 10 * time.Second})
	var le *LaunchError
	if errors.As(err, &le) {
		t.Skipf("filesystem confinement unavailable: %v", err)
	}
	require.NoError(t, err)
	return e
}

func TestConfined_WritesOutsideWorkdirNeverReachHost(t *testing.T) {
	e := confinedExecutor(t)
	host := t.TempDir()
	stash := filepath.Join(host, "stash")
	path := writeScript(t, fmt.Sprintf(`seen=C
for f in /stash %s; do
  [ -f "$f" ] && seen=D
  mkdir -p "$(dirname "$f")" 2>/dev/null
  : > "$f" 2>/dev/null
done
echo $seen`, stash))
	cmd := Command{Path: path, Env: testEnv, ReadOnly: []string{filepath.Dir(path)}}

	for turn := 1; turn <= 3; turn++ {
		cmd.Dir = t.TempDir()
		res := run(t, e, cmd, Limits{Timeout: 10 * time.Second})
		require.Equal(t, StatusOK, res.Status, "stderr: %s", res.Stderr)
		assert.Equal(t, "C\n", string(res.Stdout), "turn %d saw a file from an earlier turn", turn)
	}
	assert.NoFileExists(t, stash)
}

func TestConfined_WorkdirWritableReadOnlyPathsNot(t *testing.T) {
	e := confinedExecutor(t)
	path := writeScript(t, `: > "$PWD/out" && echo ok; : > "$(dirname "$0")/planted" 2>/dev/null || echo ro`)
	work := t.TempDir()

	res := run(t, e, Command{Path: path, Dir: work, Env: testEnv, ReadOnly: []string{filepath.Dir(path)}}, Limits{Timeout: 10 * time.Second})
	require.Equal(t, StatusOK, res.Status, "stderr: %s", res.Stderr)
	assert.Equal(t, "ok\nro\n", string(res.Stdout))
	assert.FileExists(t, filepath.Join(work, "out"))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(path), "planted"))
}

func TestConfined_UnlistedHostPathsInvisible(t *testing.T) {
	e := confinedExecutor(t)
	secret := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(secret, []byte("x"), 0o644))
	path := writeScript(t, fmt.Sprintf(`[ -e %s ] && echo seen || echo hidden`, secret))

	res := run(t, e, Command{Path: path, Dir: t.TempDir(), Env: testEnv, ReadOnly: []string{filepath.Dir(path)}}, Limits{Timeout: 10 * time.Second})
	require.Equal(t, StatusOK, res.Status, "stderr: %s", res.Stderr)
	assert.Equal(t, "hidden\n", string(res.Stdout))
}

func TestConfined_LimitsStillApply(t *testing.T) {
	e := confinedExecutor(t)
	path := writeScript(t, `ulimit -t; ulimit -v`)

	res := run(t, e, Command{Path: path, Dir: t.TempDir(), Env: testEnv, ReadOnly: []string{filepath.Dir(path)}}, Limits{
		Timeout:     10 * time.Second,
		MemoryBytes: 256 << 20,
		CPUSeconds:  3,
	})
	require.Equal(t, StatusOK, res.Status, "stderr: %s", res.Stderr)
	assert.Equal(t, "3\n262144\n", string(res.Stdout))
}

func TestConfined_RequiresInit(t *testing.T) {
	helperReady.Store(false)
	defer helperReady.Store(true)

	e := NewExecutor(t.TempDir(), WithFilesystemConfinement(true))
	_, err := e.Execute(context.Background(), Command{Path: "/bin/sh", Args: []string{"-c", "true"}}, Limits{Timeout: time.Second})
	var le *LaunchError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, err.Error(), "sandbox.Init")
}
