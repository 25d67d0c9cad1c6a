// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagesAreUncoloredOffTerminal(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader(""), &out)

	c.Infof("info %d", 1)
	c.Warnf("warn %s", "two")
	c.Errorf("error: %s", "/missing/path")

	assert.Equal(t, "info 1\nwarn two\nerror: /missing/path\n", out.String())
	assert.NotContains(t, out.String(), "\x1b[", "no ANSI escapes when writing to a buffer")
}

func TestPause(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "waits for newline", input: "\n"},
		{name: "returns on end of input", input: ""},
		{name: "consumes only one line", input: "x\nleftover\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := New(strings.NewReader(tt.input), &out)
			require.NoError(t, c.Pause())
			assert.Equal(t, PausePrompt+"\n", out.String())
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestPauseReadError(t *testing.T) {
	var out bytes.Buffer
	c := New(failingReader{}, &out)
	err := c.Pause()
	require.Error(t, err)
	assert.Contains(t, out.String(), PausePrompt)
}
