//go:build unix

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stopHelperEnv = "THERMOCYCLE_STOP_HELPER"

// TestOperatorStop_SecondSignalTerminates runs a child that keeps "recovering"
// after the first interrupt and checks that a second interrupt kills it.
func TestOperatorStop_SecondSignalTerminates(t *testing.T) {
	if os.Getenv(stopHelperEnv) == "1" {
		ctx, stop := operatorStop(context.Background(), os.Interrupt)
		defer stop()
		fmt.Println("ready")
		<-ctx.Done()
		fmt.Println("recovering")
		time.Sleep(time.Minute)
		os.Exit(0)
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestOperatorStop_SecondSignalTerminates$")
	cmd.Env = append(os.Environ(), stopHelperEnv+"=1")
	out, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())
	t.Cleanup(func() { _ = cmd.Process.Kill() })

	lines := bufio.NewScanner(out)
	waitFor := func(want string) {
		t.Helper()
		for lines.Scan() {
			if lines.Text() == want {
				return
			}
		}
		t.Fatalf("child exited before printing %q", want)
	}

	waitFor("ready")
	require.NoError(t, cmd.Process.Signal(os.Interrupt))
	waitFor("recovering")

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	// The handler is removed asynchronously after the first signal, so keep
	// interrupting until the default action takes over.
	deadline := time.After(10 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			var exitErr *exec.ExitError
			require.True(t, errors.As(err, &exitErr), "child should be killed, got %v", err)
			status, ok := exitErr.Sys().(syscall.WaitStatus)
			require.True(t, ok)
			assert.True(t, status.Signaled())
			assert.Equal(t, syscall.SIGINT, status.Signal())
			return
		case <-ticker.C:
			_ = cmd.Process.Signal(os.Interrupt)
		case <-deadline:
			t.Fatal("second interrupt did not terminate the recovery")
		}
	}
}

func TestOperatorStop_FirstSignalCancels(t *testing.T) {
	ctx, stop := operatorStop(context.Background(), syscall.SIGUSR1)
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not cancelled by signal")
	}
}
