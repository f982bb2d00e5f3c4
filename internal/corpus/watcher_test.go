package corpus

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/deckscan/internal/config"
	"github.com/turtacn/deckscan/internal/testutil"
	"github.com/turtacn/deckscan/pkg/errors"
)

func TestNewWatcher_RequiresLocalFiles(t *testing.T) {
	_, err := NewWatcher(NewLoader(testCorpusConfig(), nil, nil), func(*Corpus) error { return nil }, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCorpusUnsupported))
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entities.txt")
	require.NoError(t, os.WriteFile(path, []byte("Island\n"), 0o644))

	cfg := config.CorpusConfig{Entities: path, EntitiesFormat: FormatLines, Languages: []string{"English"}}
	loader := NewLoader(cfg, &Router{File: FileSource{}}, nil)

	var latest atomic.Pointer[Corpus]
	logger := testutil.NewMockLogger()
	w, err := NewWatcher(loader, func(c *Corpus) error {
		latest.Store(c)
		return nil
	}, logger, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	require.Eventually(t, func() bool { return logger.HasMessage("info", "watching corpus files") }, time.Second, 10*time.Millisecond)

	// Unrelated files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("Island\nForest\n"), 0o644))

	assert.Eventually(t, func() bool {
		c := latest.Load()
		return c != nil && len(c.Entities) == 2
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
