package publish

import (
	"context"
	"errors"
	"log/slog"
)

// ObjectPutter uploads one object and returns its key.
type ObjectPutter interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// ObjectSink uploads each artefact under its file name.
type ObjectSink struct {
	store  ObjectPutter
	logger *slog.Logger
}

// NewObjectSink returns nil when store is nil so callers can pass it straight
// to NewPublisher.
func NewObjectSink(store ObjectPutter, logger *slog.Logger) Sink {
	if store == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ObjectSink{store: store, logger: logger}
}

func (s *ObjectSink) Name() string { return "s3" }

func (s *ObjectSink) Publish(ctx context.Context, artifacts []Artifact) error {
	for _, a := range artifacts {
		key, err := s.store.Put(ctx, a.Name(), a.ContentType, a.Data)
		if err != nil {
			return err
		}
		s.logger.Debug("object uploaded", slog.String("key", key))
	}
	return nil
}

// SnapshotPublisher stores a snapshot payload and returns where it landed.
type SnapshotPublisher interface {
	Publish(ctx context.Context, payload []byte) (string, error)
}

// CacheSink forwards the snapshot artefact only.
type CacheSink struct {
	cache  SnapshotPublisher
	logger *slog.Logger
}

// NewCacheSink returns nil when cache is nil.
func NewCacheSink(cache SnapshotPublisher, logger *slog.Logger) Sink {
	if cache == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheSink{cache: cache, logger: logger}
}

func (s *CacheSink) Name() string { return "redis" }

func (s *CacheSink) Publish(ctx context.Context, artifacts []Artifact) error {
	for _, a := range artifacts {
		if a.Kind != KindSnapshot {
			continue
		}
		key, err := s.cache.Publish(ctx, a.Data)
		if err != nil {
			return err
		}
		s.logger.Info("snapshot cached", slog.String("key", key))
		return nil
	}
	return errors.New("no snapshot artifact")
}
