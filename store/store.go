// Package store keeps the dataset and classifier currently served. Readers
// take the whole snapshot at once so a request never mixes a table with a
// model from another load.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"droughtdash/dataset"
	"droughtdash/db"
	"droughtdash/ml"
	"droughtdash/predict"
)

// ErrNotLoaded is returned while no snapshot has been loaded yet.
var ErrNotLoaded = errors.New("no dataset loaded")

// Snapshot is one immutable dataset/model pair.
type Snapshot struct {
	Table      *dataset.Table
	Model      ml.Classifier
	LoadedAt   time.Time
	Generation uint64

	pipeline *predict.Pipeline
}

// Pipeline returns the prediction pipeline bound to this snapshot.
func (s *Snapshot) Pipeline() *predict.Pipeline {
	return s.pipeline
}

// Loader reads a fresh dataset and model.
type Loader func(ctx context.Context) (*dataset.Table, ml.Classifier, error)

// Store swaps snapshots atomically. Current never blocks; reloads are
// serialized.
type Store struct {
	loader   Loader
	logger   *zap.Logger
	onReload func(snap *Snapshot, err error)

	current    atomic.Pointer[Snapshot]
	mu         sync.Mutex
	generation uint64
}

// New creates an empty store. onReload, when not nil, is called after every
// reload attempt with either the new snapshot or the error.
func New(loader Loader, logger *zap.Logger, onReload func(snap *Snapshot, err error)) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{loader: loader, logger: logger, onReload: onReload}
}

// Current returns the snapshot in service, or nil before the first load.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Require returns the current snapshot or ErrNotLoaded.
func (s *Store) Require() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}
	return snap, nil
}

// Reload builds a new snapshot and swaps it in. On failure the previous
// snapshot stays in service.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	table, model, err := s.loader(ctx)
	if err == nil && (table == nil || model == nil) {
		err = errors.New("loader returned an empty dataset or model")
	}
	if err != nil {
		err = fmt.Errorf("reload: %w", err)
		s.logger.Error("snapshot reload failed", zap.Error(err))
		s.notify(nil, err)
		return nil, err
	}

	s.generation++
	snap := &Snapshot{
		Table:      table,
		Model:      model,
		LoadedAt:   time.Now(),
		Generation: s.generation,
		pipeline:   predict.NewPipeline(table, model),
	}
	s.current.Store(snap)
	s.logger.Info("snapshot loaded",
		zap.Uint64("generation", snap.Generation),
		zap.Int("rows", table.Len()),
		zap.Ints("years", table.Years()),
		zap.Duration("took", time.Since(start)))
	s.notify(snap, nil)
	return snap, nil
}

func (s *Store) notify(snap *Snapshot, err error) {
	if s.onReload != nil {
		s.onReload(snap, err)
	}
}

// FileLoader reads the dataset from a GeoPackage and the model from its JSON
// export.
func FileLoader(datasetPath string, opts db.Options, modelType, modelPath string) Loader {
	return func(ctx context.Context) (*dataset.Table, ml.Classifier, error) {
		table, err := db.LoadFile(ctx, datasetPath, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("load dataset %s: %w", datasetPath, err)
		}
		model, err := ml.LoadModel(modelType, modelPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load model %s: %w", modelPath, err)
		}
		return table, model, nil
	}
}
