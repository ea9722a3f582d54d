package main

import (
	"io"
	"log/slog"
	"sync"
)

// bellCue is the lockout warning: a terminal bell plus a log line.
type bellCue struct {
	mu      sync.Mutex
	out     io.Writer
	log     *slog.Logger
	playing bool
	plays   int
}

func newBellCue(out io.Writer, log *slog.Logger) *bellCue {
	return &bellCue{out: out, log: log}
}

func (c *bellCue) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.playing = true
	c.plays++

	_, _ = io.WriteString(c.out, "\a")
	c.log.Info("lockout ending soon")
}

func (c *bellCue) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing {
		return
	}

	c.playing = false
	c.log.Debug("lockout cue stopped")
}
