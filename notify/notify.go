// Package notify implements broker.Notifier sinks.
package notify

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Quaser41/Autonomous-Trader/broker"
	"github.com/rs/zerolog"
)

// Log sends every message to a zerolog logger at info level.
type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) Log {
	return Log{log: log.With().Str("component", "notify").Logger()}
}

func (n Log) Notify(msg string) {
	n.log.Info().Msg(msg)
}

// File appends timestamped lines to an events log.
type File struct {
	mu  sync.Mutex
	f   *os.File
	now func() time.Time
	log zerolog.Logger
}

// OpenFile opens path for appending, creating parent directories.
func OpenFile(path string, log zerolog.Logger) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create events dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open events log: %w", err)
	}
	return &File{f: f, now: time.Now, log: log}, nil
}

// Notify never fails; write errors are logged.
func (n *File) Notify(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.f == nil {
		return
	}
	line := fmt.Sprintf("%s %s\n", n.now().UTC().Format(time.RFC3339), msg)
	if _, err := n.f.WriteString(line); err != nil {
		n.log.Error().Err(err).Msg("write events log")
	}
}

func (n *File) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.f == nil {
		return nil
	}
	err := n.f.Close()
	n.f = nil
	return err
}

// Multi fans a message out to every notifier.
type Multi []broker.Notifier

func (m Multi) Notify(msg string) {
	for _, n := range m {
		if n != nil {
			n.Notify(msg)
		}
	}
}

var (
	_ broker.Notifier = Log{}
	_ broker.Notifier = (*File)(nil)
	_ broker.Notifier = Multi(nil)
)
