// Package export publishes finished snapshots to Prometheus and OTLP.
package export

import (
	"context"
	"errors"
	"sync"

	"poolmon/internal/snapshot"
)

// Sink receives every finished snapshot
type Sink interface {
	Publish(frame *snapshot.DataFrame)
	Close(ctx context.Context) error
}

// Sinks fans a snapshot out to several sinks
type Sinks []Sink

func (s Sinks) Publish(frame *snapshot.DataFrame) {
	for _, sink := range s {
		sink.Publish(frame)
	}
}

func (s Sinks) Close(ctx context.Context) error {
	var errs []error
	for _, sink := range s {
		if err := sink.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Latest holds the most recent snapshot for pull-based readers
type Latest struct {
	mu    sync.RWMutex
	frame *snapshot.DataFrame
}

// Store replaces the held snapshot
func (l *Latest) Store(frame *snapshot.DataFrame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frame = frame
}

// Load returns the held snapshot, nil before the first one
func (l *Latest) Load() *snapshot.DataFrame {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frame
}
