// Package trajectory exports (s, a, r, s', done) transitions to Parquet so
// runs can be analysed offline.
package trajectory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/talgya/brains/internal/agents"
	"github.com/talgya/brains/internal/learning"
)

// ErrClosed is returned when writing to a closed Writer.
var ErrClosed = errors.New("trajectory: writer is closed")

// Phases tag which loop produced a row.
const (
	PhaseTrain    = "train"
	PhaseEvaluate = "evaluate"
)

// Row is one stored transition.
type Row struct {
	RunID   string  `parquet:"run_id,dict"`
	Phase   string  `parquet:"phase,dict"`
	Episode int32   `parquet:"episode"`
	Step    int32   `parquet:"step"`
	State   int64   `parquet:"state"`
	Action  int32   `parquet:"action"`
	Name    string  `parquet:"action_name,dict"`
	Reward  float64 `parquet:"reward"`
	Next    int64   `parquet:"next"`
	Done    bool    `parquet:"done"`
}

// flushRows is how many rows are buffered before a write.
const flushRows = 4096

// Writer streams rows to a Parquet file. The file is written under a
// temporary name and renamed into place by Close.
type Writer struct {
	runID string
	phase string
	every int

	tmpPath string
	outPath string
	file    *os.File
	writer  *parquet.GenericWriter[Row]

	buf  []Row
	rows int
	err  error
}

// NewWriter creates outPath's directory and opens a writer. Only episodes
// whose index is a multiple of every are kept; every <= 1 keeps them all.
func NewWriter(outPath, runID string, every int) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	tmpPath := outPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open tmp parquet: %w", err)
	}

	w := parquet.NewGenericWriter[Row](f,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
	)
	w.SetKeyValueMetadata("schema", "transition_v1")
	w.SetKeyValueMetadata("run_id", runID)

	return &Writer{
		runID:   runID,
		phase:   PhaseTrain,
		every:   max(every, 1),
		tmpPath: tmpPath,
		outPath: outPath,
		file:    f,
		writer:  w,
		buf:     make([]Row, 0, flushRows),
	}, nil
}

// SetPhase tags subsequent rows.
func (w *Writer) SetPhase(phase string) { w.phase = phase }

// Rows returns how many rows have been accepted.
func (w *Writer) Rows() int { return w.rows }

// Record fits learning.Hooks.OnStep. The first error is kept and returned
// by Close.
func (w *Writer) Record(t learning.Transition) {
	if w.err != nil {
		return
	}
	if w.writer == nil {
		w.err = ErrClosed
		return
	}
	if t.Episode%w.every != 0 {
		return
	}
	w.buf = append(w.buf, Row{
		RunID:   w.runID,
		Phase:   w.phase,
		Episode: int32(t.Episode),
		Step:    int32(t.Step),
		State:   int64(t.State),
		Action:  int32(t.Action),
		Name:    agents.ActionName(t.Action),
		Reward:  t.Reward,
		Next:    int64(t.Next),
		Done:    t.Done,
	})
	w.rows++
	if len(w.buf) >= flushRows {
		w.flush()
	}
}

func (w *Writer) flush() {
	if len(w.buf) == 0 {
		return
	}
	if _, err := w.writer.Write(w.buf); err != nil {
		w.err = fmt.Errorf("write rows: %w", err)
	}
	w.buf = w.buf[:0]
}

// Close flushes, closes and moves the file into place. With no rows the
// temporary file is removed and no output is produced.
func (w *Writer) Close() error {
	if w.writer == nil {
		return w.err
	}
	if w.err == nil {
		w.flush()
	}

	closeErr := w.writer.Close()
	w.writer = nil
	_ = w.file.Sync()
	fileErr := w.file.Close()
	w.file = nil

	switch {
	case w.err != nil:
	case closeErr != nil:
		w.err = fmt.Errorf("close parquet writer: %w", closeErr)
	case fileErr != nil:
		w.err = fmt.Errorf("close parquet file: %w", fileErr)
	}
	if w.err != nil || w.rows == 0 {
		_ = os.Remove(w.tmpPath)
		return w.err
	}
	if err := os.Rename(w.tmpPath, w.outPath); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// Abort closes the writer and removes the temporary file without producing
// output. It does nothing after Close.
func (w *Writer) Abort() {
	if w.writer == nil {
		return
	}
	_ = w.writer.Close()
	w.writer = nil
	_ = w.file.Close()
	w.file = nil
	_ = os.Remove(w.tmpPath)
	if w.err == nil {
		w.err = ErrClosed
	}
}

// ReadFile loads every row of a trajectory file.
func ReadFile(path string) ([]Row, error) {
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return rows, nil
}
