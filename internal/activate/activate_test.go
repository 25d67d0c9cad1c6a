// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package activate

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/envlaunch/internal/process"
)

// mockExecutor records calls and returns configured responses.
type mockExecutor struct {
	availableBins map[string]bool
	output        []byte
	stderr        string
	err           error
	calls         []process.Cmd
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.availableBins[file] {
		return file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) Output(_ context.Context, c process.Cmd) ([]byte, error) {
	m.calls = append(m.calls, c)
	if c.Stderr != nil && m.stderr != "" {
		c.Stderr.Write([]byte(m.stderr))
	}
	return m.output, m.err
}

func (m *mockExecutor) Run(context.Context, process.Cmd) (int, error) {
	return 0, errors.New("Run is not used by activation")
}

func TestDetectShell(t *testing.T) {
	tests := []struct {
		name     string
		goos     string
		bins     map[string]bool
		wantName string
		wantErr  bool
	}{
		{name: "windows uses cmd", goos: "windows", bins: map[string]bool{"cmd.exe": true}, wantName: "cmd"},
		{name: "linux uses sh", goos: "linux", bins: map[string]bool{"/bin/sh": true}, wantName: "sh"},
		{name: "darwin uses sh", goos: "darwin", bins: map[string]bool{"/bin/sh": true}, wantName: "sh"},
		{name: "windows without cmd", goos: "windows", bins: map[string]bool{"/bin/sh": true}, wantErr: true},
		{name: "linux without sh", goos: "linux", bins: map[string]bool{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sh, err := detectShell(tt.goos, &mockExecutor{availableBins: tt.bins})
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "no activation shell available")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, sh.Name())
		})
	}
}

func TestActivateCommandLine(t *testing.T) {
	exec := &mockExecutor{output: []byte(marker + "\x00PATH=/env/bin\x00")}

	_, err := newShShell(exec).Activate(context.Background(), "/opt/conda/bin/activate", "myenv", nil)
	require.NoError(t, err)
	require.Len(t, exec.calls, 1)
	c := exec.calls[0]
	assert.Equal(t, "/bin/sh", c.Name)
	assert.Equal(t, "-c", c.Args[0])
	assert.Equal(t, []string{"envlaunch", "/opt/conda/bin/activate", "myenv"}, c.Args[2:])

	exec.calls = nil
	_, err = newCmdShell(exec).Activate(context.Background(), `C:\Users\me\anaconda3\Scripts\activate.bat`, "myenv", nil)
	require.NoError(t, err)
	require.Len(t, exec.calls, 1)
	c = exec.calls[0]
	assert.Equal(t, "cmd.exe", c.Name)
	assert.Equal(t, []string{"/d", "/c", "call", `C:\Users\me\anaconda3\Scripts\activate.bat`, "myenv",
		"&&", "echo", marker, "&&", "set"}, c.Args)
}

func TestActivate(t *testing.T) {
	tests := []struct {
		name     string
		mkShell  func(process.Executor) *shell
		output   string
		stderr   string
		err      error
		wantEnv  Environment
		wantDiag string
		errMsg   string
	}{
		{
			name:    "captures environment after marker",
			mkShell: newShShell,
			output:  marker + "\x00PATH=/env/bin:/usr/bin\x00CONDA_DEFAULT_ENV=myenv\x00",
			wantEnv: Environment{"PATH=/env/bin:/usr/bin", "CONDA_DEFAULT_ENV=myenv"},
		},
		{
			name:    "values keep newlines and surrounding whitespace",
			mkShell: newShShell,
			output:  marker + "\x00MULTI=line1\nINJECTED=evil\x00TRAIL=  value   \x00",
			wantEnv: Environment{"MULTI=line1\nINJECTED=evil", "TRAIL=  value   "},
		},
		{
			name:     "cmd activation chatter is forwarded",
			mkShell:  newCmdShell,
			output:   "Activating myenv...\r\n" + marker + " \r\nPATH=C:\\env;C:\\Windows\r\n=C:=C:\\work\r\nPADDED= x \r\n",
			stderr:   "warning: deprecated\n",
			wantEnv:  Environment{"PATH=C:\\env;C:\\Windows", "PADDED= x "},
			wantDiag: "Activating myenv...\r\nwarning: deprecated\n",
		},
		{
			name:     "nonzero exit fails",
			mkShell:  newShShell,
			output:   "Could not find conda environment: myenv\n",
			err:      errors.New("exit status 1"),
			wantDiag: "Could not find conda environment: myenv\n",
			errMsg:   "activating myenv",
		},
		{
			name:    "missing marker fails",
			mkShell: newShShell,
			output:  "PATH=/usr/bin\n",
			errMsg:  "environment was not reported",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &mockExecutor{output: []byte(tt.output), stderr: tt.stderr, err: tt.err}
			var diag bytes.Buffer
			env, err := tt.mkShell(exec).Activate(context.Background(), "/conda/bin/activate", "myenv", &diag)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Contains(t, err.Error(), "/conda/bin/activate")
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantEnv, env)
			}
			if tt.wantDiag != "" {
				assert.Equal(t, tt.wantDiag, diag.String())
			}
		})
	}
}

func TestSplitOutputLongValue(t *testing.T) {
	long := strings.Repeat("x", 2*1024*1024)
	out := []byte(marker + "\x00BIG=" + long + "\x00AFTER=1\x00")

	env, _, found := splitOutput(out, 0)
	require.True(t, found)
	require.Len(t, env, 2)
	assert.Equal(t, long, env.Get("BIG"))
	assert.Equal(t, "1", env.Get("AFTER"), "entries after a long value are kept")

	env, _, found = splitOutput([]byte(marker+"\r\nBIG="+long+"\r\nAFTER=1\r\n"), '\n')
	require.True(t, found)
	assert.Equal(t, long, env.Get("BIG"))
	assert.Equal(t, "1", env.Get("AFTER"))
}

func TestEnvironmentGet(t *testing.T) {
	env := Environment{"PATH=/a", "CONDA_PREFIX=/opt/conda/envs/myenv"}
	assert.Equal(t, "/opt/conda/envs/myenv", env.Get("CONDA_PREFIX"))
	assert.Equal(t, "", env.Get("HOME"))
}

// TestShActivateRealShell sources a stub activation script with the real
// POSIX shell and checks the exported variables come back.
func TestShActivateRealShell(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	dir := filepath.Join(t.TempDir(), "with space")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	script := filepath.Join(dir, "activate")
	body := "echo \"activating $1\"\n" +
		"[ \"$1\" = myenv ] || return 1\n" +
		"export ENVLAUNCH_TEST_ENV=\"$1\"\n" +
		"export ENVLAUNCH_TEST_MULTI='line1\nINJECTED=evil'\n" +
		"export ENVLAUNCH_TEST_TRAIL='value   '\n" +
		"export PATH=\"/fake/envs/$1/bin:$PATH\"\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o644))

	sh := newShShell(process.OS{})
	var diag bytes.Buffer
	env, err := sh.Activate(context.Background(), script, "myenv", &diag)
	require.NoError(t, err)
	assert.Equal(t, "myenv", env.Get("ENVLAUNCH_TEST_ENV"))
	assert.True(t, strings.HasPrefix(env.Get("PATH"), "/fake/envs/myenv/bin:"))
	assert.Equal(t, "line1\nINJECTED=evil", env.Get("ENVLAUNCH_TEST_MULTI"))
	assert.Equal(t, "value   ", env.Get("ENVLAUNCH_TEST_TRAIL"))
	assert.Empty(t, env.Get("INJECTED"), "continuation lines must not become variables")
	assert.Contains(t, diag.String(), "activating myenv")

	_, err = sh.Activate(context.Background(), script, "other", &diag)
	require.Error(t, err)
}
