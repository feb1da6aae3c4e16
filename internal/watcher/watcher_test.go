package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherNotifiesOnAudioFileChange(t *testing.T) {
	dir := t.TempDir()
	notified := make(chan struct{}, 1)

	w, err := New(slog.New(slog.DiscardHandler), func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.mp3"), []byte("x"), 0o644))

	select {
	case <-notified:
	case <-time.After(5 * time.Second):
		t.Fatal("no notification for new audio file")
	}
}

func TestWatcherIgnoresNonAudioFiles(t *testing.T) {
	dir := t.TempDir()
	notified := make(chan struct{}, 1)

	w, err := New(slog.New(slog.DiscardHandler), func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("x"), 0o644))

	select {
	case <-notified:
		t.Fatal("non-audio file must not notify")
	case <-time.After(debounce * 3):
	}
}
