package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileSource(t *testing.T) *FileSource {
	t.Helper()
	return NewFileSource(filepath.Join(t.TempDir(), "account.yaml"), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeSignals(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestFileSource_Read(t *testing.T) {
	f := newTestFileSource(t)

	s, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, Signals{}, s, "missing file means signed out")

	writeSignals(t, f.Path(), "")
	s, err = f.Read()
	require.NoError(t, err)
	assert.Equal(t, Signals{}, s)

	writeSignals(t, f.Path(), "signed_in: true\nremote_available: true\n")
	s, err = f.Read()
	require.NoError(t, err)
	assert.Equal(t, Signals{SignedIn: true, RemoteAvailable: true}, s)

	writeSignals(t, f.Path(), "signed_in: true\nicloud: yes\n")
	_, err = f.Read()
	assert.Error(t, err, "unknown keys are rejected")
}

func TestFileSource_Account(t *testing.T) {
	f := newTestFileSource(t)
	ctx := context.Background()

	assert.False(t, f.SignedIn())
	assert.ErrorIs(t, f.CheckAccount(ctx), ErrSignedOut)

	writeSignals(t, f.Path(), "signed_in: true\n")
	assert.True(t, f.SignedIn())
	assert.ErrorIs(t, f.CheckAccount(ctx), ErrRemoteOffline)

	writeSignals(t, f.Path(), "signed_in: true\nremote_available: true\n")
	assert.NoError(t, f.CheckAccount(ctx))
}

func TestFileSource_Watch(t *testing.T) {
	f := newTestFileSource(t)
	writeSignals(t, f.Path(), "signed_in: false\n")

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := f.Watch(ctx)
	require.NoError(t, err)

	receiveUntil(t, ch, Signals{})

	writeSignals(t, f.Path(), "signed_in: true\nremote_available: true\n")
	receiveUntil(t, ch, Signals{SignedIn: true, RemoteAvailable: true})

	// Replacing the file by rename is seen as well.
	tmp := f.Path() + ".tmp"
	writeSignals(t, tmp, "signed_in: true\nremote_available: false\n")
	require.NoError(t, os.Rename(tmp, f.Path()))
	receiveUntil(t, ch, Signals{SignedIn: true})

	cancel()
	for range ch {
	}
}

func TestFileSource_WatchMissingDirectory(t *testing.T) {
	f := NewFileSource(filepath.Join(t.TempDir(), "nope", "account.yaml"), nil)
	_, err := f.Watch(context.Background())
	assert.Error(t, err)
}

// receiveUntil waits for want, skipping intermediate states a truncating
// write may expose.
func receiveUntil(t *testing.T, ch <-chan Signals, want Signals) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case s, ok := <-ch:
			require.True(t, ok, "signals channel closed")
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %+v", want)
		}
	}
}
