// Package publish writes rendered dashboard artefacts to disk and forwards
// them to optional remote sinks.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// Kind identifies what an artefact contains.
type Kind string

const (
	KindSnapshot Kind = "snapshot"
	KindDocument Kind = "document"
	KindPDF      Kind = "pdf"
	KindCSV      Kind = "csv"
)

// Artifact is one rendered output held in memory until it is written.
type Artifact struct {
	Kind        Kind
	Path        string
	ContentType string
	Data        []byte
}

// Name is the artefact's file name without directories.
func (a Artifact) Name() string {
	return filepath.Base(a.Path)
}

// Sink receives artefacts after the local files are in place.
type Sink interface {
	Name() string
	Publish(ctx context.Context, artifacts []Artifact) error
}

// SinkError reports which sink rejected a publication.
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string {
	return "publish: " + e.Sink + ": " + e.Err.Error()
}

func (e *SinkError) Unwrap() error { return e.Err }

// Publisher writes artefacts locally, then fans out to every sink.
type Publisher struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewPublisher returns a publisher. Nil sinks are dropped.
func NewPublisher(logger *slog.Logger, sinks ...Sink) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Publisher{sinks: kept, logger: logger}
}

// Sinks reports how many remote sinks are configured.
func (p *Publisher) Sinks() int {
	return len(p.sinks)
}

// Publish writes every artefact and then runs the sinks concurrently. All
// artefacts are staged before any target is replaced, so a failed write
// leaves none of them behind. Local files already written are kept when a
// sink fails.
func (p *Publisher) Publish(ctx context.Context, artifacts []Artifact) error {
	if err := WriteFiles(artifacts); err != nil {
		return err
	}
	for _, a := range artifacts {
		p.logger.Info("artifact written", slog.String("kind", string(a.Kind)), slog.String("path", a.Path), slog.Int("bytes", len(a.Data)))
	}
	if len(p.sinks) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range p.sinks {
		sink := sink
		g.Go(func() error {
			if err := sink.Publish(gctx, artifacts); err != nil {
				p.logger.Error("sink failed", slog.String("sink", sink.Name()), slog.Any("error", err))
				return &SinkError{Sink: sink.Name(), Err: err}
			}
			p.logger.Info("sink published", slog.String("sink", sink.Name()))
			return nil
		})
	}
	return g.Wait()
}

// WriteFile replaces path atomically: data goes to a temp file in the same
// directory which is then renamed over the target.
func WriteFile(path string, data []byte) error {
	return WriteFiles([]Artifact{{Path: path, Data: data}})
}

type staged struct {
	tmp    string
	target string
}

// WriteFiles stages every artefact as a temp file beside its target and
// renames them into place only once all of them are staged. On a staging
// error the temps are removed and no target is touched.
func WriteFiles(artifacts []Artifact) error {
	pending := make([]staged, 0, len(artifacts))
	discard := func() {
		for _, s := range pending {
			_ = os.Remove(s.tmp)
		}
	}
	for _, a := range artifacts {
		tmp, err := stage(a.Path, a.Data)
		if err != nil {
			discard()
			return err
		}
		pending = append(pending, staged{tmp: tmp, target: a.Path})
	}
	for i, s := range pending {
		if err := os.Rename(s.tmp, s.target); err != nil {
			for _, rest := range pending[i:] {
				_ = os.Remove(rest.tmp)
			}
			return fmt.Errorf("publish: rename %s: %w", s.target, err)
		}
	}
	return nil
}

func stage(path string, data []byte) (string, error) {
	if path == "" {
		return "", errors.New("publish: empty path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("publish: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("publish: create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("publish: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("publish: close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return "", fmt.Errorf("publish: chmod %s: %w", path, err)
	}
	return tmpName, nil
}
