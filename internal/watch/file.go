package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// ErrSignedOut is returned by FileSource.CheckAccount when the file reports
// no signed-in account.
var ErrSignedOut = errors.New("account signed out")

// ErrRemoteOffline is returned by FileSource.CheckAccount when the file
// reports the remote store as unavailable.
var ErrRemoteOffline = errors.New("remote store offline")

// FileSource reads signals from a YAML file:
//
//	signed_in: true
//	remote_available: true
//
// A missing or empty file means signed out and unavailable. Watch follows
// changes with fsnotify on the file's directory, so editors that replace the
// file by rename are seen too.
//
// FileSource also implements mode.Account.
type FileSource struct {
	path   string
	logger *slog.Logger
}

// NewFileSource creates a source for path. A nil logger means slog.Default().
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{path: filepath.Clean(path), logger: logger}
}

// Path returns the watched file.
func (f *FileSource) Path() string {
	return f.path
}

// Read decodes the current file contents.
func (f *FileSource) Read() (Signals, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Signals{}, nil
	}
	if err != nil {
		return Signals{}, fmt.Errorf("open signals file: %w", err)
	}
	defer file.Close()

	var s Signals
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Signals{}, fmt.Errorf("parse signals file %s: %w", f.path, err)
	}
	return s, nil
}

// SignedIn reports the file's sign-in state. Unreadable files count as
// signed out.
func (f *FileSource) SignedIn() bool {
	s, err := f.Read()
	if err != nil {
		f.logger.Warn("read signals file", "path", f.path, "error", err)
		return false
	}
	return s.SignedIn
}

// CheckAccount fails unless the file reports a signed-in account and an
// available remote store.
func (f *FileSource) CheckAccount(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := f.Read()
	if err != nil {
		return err
	}
	if !s.SignedIn {
		return ErrSignedOut
	}
	if !s.RemoteAvailable {
		return ErrRemoteOffline
	}
	return nil
}

// Watch emits the current signals, then every change until ctx is done.
// Unchanged rewrites and unparsable contents are not emitted.
func (f *FileSource) Watch(ctx context.Context) (<-chan Signals, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	out := make(chan Signals, 1)
	go func() {
		defer close(out)
		defer fw.Close()

		last, err := f.Read()
		if err != nil {
			f.logger.Warn("read signals file", "path", f.path, "error", err)
		}
		if !f.send(ctx, out, last) {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != f.path {
					continue
				}
				s, err := f.Read()
				if err != nil {
					f.logger.Warn("read signals file", "path", f.path, "op", ev.Op.String(), "error", err)
					continue
				}
				if s == last {
					continue
				}
				last = s
				if !f.send(ctx, out, s) {
					return
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				f.logger.Warn("file watcher error", "path", f.path, "error", err)
			}
		}
	}()
	return out, nil
}

func (f *FileSource) send(ctx context.Context, out chan<- Signals, s Signals) bool {
	select {
	case out <- s:
		return true
	case <-ctx.Done():
		return false
	}
}
