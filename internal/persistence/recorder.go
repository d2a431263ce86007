package persistence

import "github.com/talgya/brains/internal/learning"

// DefaultBatchSize is how many episodes EpisodeRecorder buffers per write.
const DefaultBatchSize = 500

// EpisodeRecorder buffers finished episodes and writes them in batches.
// Record fits learning.Hooks.OnEpisode; the first write error is kept and
// reported by Flush, after which recording stops.
type EpisodeRecorder struct {
	db    *DB
	runID string
	batch int
	buf   []learning.Episode
	saved int
	err   error
}

// NewEpisodeRecorder creates a recorder for runID.
func NewEpisodeRecorder(db *DB, runID string, batch int) *EpisodeRecorder {
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &EpisodeRecorder{db: db, runID: runID, batch: batch, buf: make([]learning.Episode, 0, batch)}
}

// Record buffers ep, writing the batch when it is full.
func (r *EpisodeRecorder) Record(ep learning.Episode) {
	if r.err != nil {
		return
	}
	r.buf = append(r.buf, ep)
	if len(r.buf) >= r.batch {
		r.write()
	}
}

// Flush writes any buffered episodes and returns the first error seen.
func (r *EpisodeRecorder) Flush() error {
	if r.err == nil {
		r.write()
	}
	return r.err
}

// Saved returns how many episodes have been written.
func (r *EpisodeRecorder) Saved() int { return r.saved }

func (r *EpisodeRecorder) write() {
	if err := r.db.RecordEpisodes(r.runID, r.buf); err != nil {
		r.err = err
		return
	}
	r.saved += len(r.buf)
	r.buf = r.buf[:0]
}
