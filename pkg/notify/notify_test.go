package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulti_FansOut(t *testing.T) {
	var got []string
	record := Func(func(ctx context.Context, message string) {
		got = append(got, message)
	})

	var buf bytes.Buffer
	m := Multi{record, Bell{W: &buf}, record}
	m.Notify(context.Background(), "position lost")

	assert.Equal(t, []string{"position lost", "position lost"}, got)
	assert.Equal(t, "\a", buf.String())
}

func TestNew(t *testing.T) {
	n := New(Config{Bell: true, Command: []string{"aplay", "beep.wav"}}, nil)
	m, ok := n.(Multi)
	require.True(t, ok)
	require.Len(t, m, 2)

	cmd, ok := m[1].(*Command)
	require.True(t, ok)
	assert.Equal(t, "aplay", cmd.Name)
	assert.Equal(t, []string{"beep.wav"}, cmd.Args)

	assert.Empty(t, New(Config{}, nil))
}

func TestCommand_MissingBinary(t *testing.T) {
	c := &Command{Name: "/nonexistent/alert-player"}
	c.Notify(context.Background(), "x")

	// A failed start must not leave the command marked as running.
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.False(t, c.running)
}
