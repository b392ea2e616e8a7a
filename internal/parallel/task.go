// Package parallel loads one file with several worker processes, each
// writing a disjoint row range through its own database connection.
//
// The Coordinator owns the table's indexes: it drops them once before
// dispatch and recreates them once after every worker has finished, whether
// or not all of them succeeded. Workers receive a Task value and never an
// index manager.
package parallel

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"compliancedb/internal/loader"
	"compliancedb/internal/loaderr"
	"compliancedb/internal/storage"
)

// Task is everything a worker needs to load its range. It crosses the
// process boundary as JSON and is never mutated after construction.
type Task struct {
	ID         string         `json:"id"`
	RunID      string         `json:"run_id,omitempty"`
	Table      string         `json:"table"`
	Path       string         `json:"path"`
	Format     string         `json:"format"`
	Range      loader.Range   `json:"range"`
	Storage    storage.Config `json:"storage"`
	ChunkSize  int            `json:"chunk_size"`
	SkippedDir string         `json:"skipped_dir,omitempty"`
	NoDedupe   bool           `json:"no_dedupe,omitempty"`
}

// Result is what a worker reports back.
type Result struct {
	ID      string         `json:"id"`
	Range   loader.Range   `json:"range"`
	Summary loader.Summary `json:"summary"`
	Kind    string         `json:"kind,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Err rebuilds the worker's error, keeping its kind for errors.Is.
func (r Result) Err() error {
	return loaderr.FromKind(r.Kind, r.Error)
}

func failed(t Task, err error) Result {
	return Result{
		ID:      t.ID,
		Range:   t.Range,
		Summary: loader.Summary{Table: t.Table, Path: t.Path, Format: t.Format},
		Kind:    loaderr.KindOf(err),
		Error:   err.Error(),
	}
}

// WriteTask encodes t as one JSON document.
func WriteTask(w io.Writer, t Task) error {
	return json.NewEncoder(w).Encode(t)
}

// ReadTask decodes a Task and checks it is usable.
func ReadTask(r io.Reader) (Task, error) {
	var t Task
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	if t.Table == "" || t.Path == "" || t.Storage.Kind == "" {
		return Task{}, fmt.Errorf("decode task: table, path and storage kind are required")
	}
	return t, nil
}

// WriteResult encodes r as one JSON document.
func WriteResult(w io.Writer, r Result) error {
	return json.NewEncoder(w).Encode(r)
}

// ReadResult decodes the first JSON document in r.
func ReadResult(r io.Reader) (Result, error) {
	var res Result
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("decode worker result: %w", err)
	}
	return res, nil
}
