package samples

import (
	"context"
	"fmt"

	"github.com/miradorstack/pingwatch/internal/models"
)

// Recorder appends samples to durable storage.
type Recorder interface {
	Append(ctx context.Context, sample models.Sample) error
}

// Reader loads the recorded history for offline training.
type Reader interface {
	ReadAll(ctx context.Context) ([]models.Sample, error)
}

// Store is a sample log that can be written by the engine and read by the trainer.
type Store interface {
	Recorder
	Reader
	Close() error
}

// Open returns the Store for the named backend.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", "csv":
		return NewCSVStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown sample backend %q", backend)
	}
}
