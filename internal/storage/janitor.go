package storage

import (
	"errors"
	"io/fs"
	"sync"

	"github.com/rs/zerolog"
)

type Remover interface {
	Remove(ref string) error
}

// Janitor removes stored files in the background once the records pointing
// at them have been committed. Removal is best-effort: failures are logged
// and files that are already gone are ignored.
type Janitor struct {
	files  Remover
	logger zerolog.Logger
	queue  chan string
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewJanitor(files Remover, logger zerolog.Logger, backlog int) *Janitor {
	if backlog <= 0 {
		backlog = 64
	}
	j := &Janitor{
		files:  files,
		logger: logger,
		queue:  make(chan string, backlog),
		done:   make(chan struct{}),
	}
	go j.run()
	return j
}

func (j *Janitor) run() {
	defer close(j.done)
	for ref := range j.queue {
		j.remove(ref)
	}
}

func (j *Janitor) remove(ref string) {
	err := j.files.Remove(ref)
	if err == nil {
		j.logger.Debug().Str("file", ref).Msg("Stored file removed")
		return
	}
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	j.logger.Warn().Err(err).Str("file", ref).Msg("Failed to remove stored file")
}

// Discard schedules ref for removal. Nil or empty references are ignored.
func (j *Janitor) Discard(ref *string) {
	if ref == nil || *ref == "" {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		j.remove(*ref)
		return
	}

	select {
	case j.queue <- *ref:
	default:
		j.logger.Warn().Str("file", *ref).Msg("Cleanup backlog full, removing inline")
		j.remove(*ref)
	}
}

// Close stops accepting work and waits for queued removals to finish.
func (j *Janitor) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		<-j.done
		return
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()
	<-j.done
}
