// Package tail follows a growing log file line by line, surviving
// truncation and rename-style rotation.
package tail

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	DefaultPollMin = 50 * time.Millisecond
	DefaultPollMax = 2 * time.Second

	maxLineBytes = 1 << 20
)

// Follower reads complete lines appended to Path. A trailing fragment
// without a newline is held back until the rest of it arrives.
type Follower struct {
	Path      string
	FromStart bool
	PollMin   time.Duration
	PollMax   time.Duration
	Log       *zap.Logger
}

func NewFollower(path string, fromStart bool, pollMax time.Duration, log *zap.Logger) *Follower {
	if pollMax <= 0 {
		pollMax = DefaultPollMax
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Follower{Path: path, FromStart: fromStart, PollMin: DefaultPollMin, PollMax: pollMax, Log: log}
}

type cursor struct {
	f       *os.File
	r       *bufio.Reader
	info    os.FileInfo
	offset  int64
	pending []byte

	// skipping is set while discarding the rest of an oversized line
	skipping bool
}

// Run calls handle for every line until ctx is cancelled. handle runs on
// the caller's goroutine, so lines are delivered strictly in file order.
// The slice is reused after handle returns.
func (f *Follower) Run(ctx context.Context, handle func(line []byte)) error {
	cur, err := f.open(ctx, !f.FromStart)
	if err != nil {
		return err
	}
	defer func() { cur.f.Close() }()

	wake := make(chan struct{}, 1)
	if w, err := fsnotify.NewWatcher(); err != nil {
		f.Log.Warn("tail_watch_unavailable", zap.Error(err))
	} else {
		defer w.Close()
		if err := w.Add(filepath.Dir(f.Path)); err != nil {
			f.Log.Warn("tail_watch_unavailable", zap.String("dir", filepath.Dir(f.Path)), zap.Error(err))
		} else {
			go forward(ctx, w, f.Path, wake, f.Log)
		}
	}

	bo := f.newBackOff()
	for {
		n, err := f.drain(cur, handle)
		if err != nil {
			return err
		}
		if n > 0 {
			bo.Reset()
			continue
		}

		if next, reopened := f.checkRotation(ctx, cur); reopened {
			cur.f.Close()
			cur = next
			bo.Reset()
			continue
		}

		t := time.NewTimer(bo.NextBackOff())
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-wake:
			t.Stop()
		case <-t.C:
		}
	}
}

// drain reads every complete line currently available.
func (f *Follower) drain(cur *cursor, handle func([]byte)) (int, error) {
	n := 0
	for {
		chunk, err := cur.r.ReadSlice('\n')
		cur.offset += int64(len(chunk))
		if !cur.skipping && len(chunk) > 0 {
			cur.pending = append(cur.pending, chunk...)
			if len(cur.pending) > maxLineBytes {
				f.Log.Warn("tail_line_too_long", zap.Int("bytes", len(cur.pending)))
				cur.pending = cur.pending[:0]
				cur.skipping = true
			}
		}
		switch {
		case err == nil:
			if cur.skipping {
				cur.skipping = false
			} else if line := bytes.TrimRight(cur.pending, "\r\n"); len(line) > 0 {
				handle(line)
			}
			cur.pending = cur.pending[:0]
			n++
		case errors.Is(err, bufio.ErrBufferFull):
			// the line continues past the reader's buffer
		case errors.Is(err, io.EOF):
			return n, nil
		default:
			return n, err
		}
	}
}

// checkRotation reopens the path when the file was replaced or truncated.
func (f *Follower) checkRotation(ctx context.Context, cur *cursor) (*cursor, bool) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return nil, false
	}
	if os.SameFile(info, cur.info) {
		if info.Size() >= cur.offset {
			return nil, false
		}
		f.Log.Info("tail_truncated", zap.String("path", f.Path), zap.Int64("size", info.Size()))
		if _, err := cur.f.Seek(0, io.SeekStart); err != nil {
			return nil, false
		}
		cur.r.Reset(cur.f)
		cur.offset = 0
		cur.pending = cur.pending[:0]
		cur.skipping = false
		return nil, false
	}
	next, err := f.open(ctx, false)
	if err != nil {
		return nil, false
	}
	f.Log.Info("tail_rotated", zap.String("path", f.Path))
	return next, true
}

// open waits for the file to exist, retrying with backoff until ctx ends.
func (f *Follower) open(ctx context.Context, atEnd bool) (*cursor, error) {
	bo := f.newBackOff()
	for {
		fh, err := os.Open(f.Path)
		if err == nil {
			info, err := fh.Stat()
			if err != nil {
				fh.Close()
				return nil, err
			}
			var off int64
			if atEnd {
				if off, err = fh.Seek(0, io.SeekEnd); err != nil {
					fh.Close()
					return nil, err
				}
			}
			f.Log.Info("tail_opened", zap.String("path", f.Path), zap.Int64("offset", off))
			return &cursor{f: fh, r: bufio.NewReaderSize(fh, 64*1024), info: info, offset: off}, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		f.Log.Debug("tail_waiting_for_file", zap.String("path", f.Path))
		t := time.NewTimer(bo.NextBackOff())
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (f *Follower) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.PollMin
	if bo.InitialInterval <= 0 {
		bo.InitialInterval = DefaultPollMin
	}
	bo.MaxInterval = f.PollMax
	if bo.MaxInterval < bo.InitialInterval {
		bo.MaxInterval = bo.InitialInterval
	}
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func forward(ctx context.Context, w *fsnotify.Watcher, path string, wake chan<- struct{}, log *zap.Logger) {
	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Debug("tail_watch_error", zap.Error(err))
		}
	}
}
