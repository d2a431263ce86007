// Package persistence provides SQLite storage for training diagnostics:
// runs, per-episode results, evaluations, simulation events and metadata.
// The learned table itself is never stored.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/brains/internal/engine"
	"github.com/talgya/brains/internal/learning"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("persistence: not found")

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		world TEXT NOT NULL,
		height INTEGER NOT NULL,
		width INTEGER NOT NULL,
		nb_states INTEGER NOT NULL,
		nb_actions INTEGER NOT NULL,
		episodes INTEGER NOT NULL,
		alpha REAL NOT NULL,
		gamma REAL NOT NULL,
		epsilon REAL NOT NULL,
		seed INTEGER NOT NULL,
		steps INTEGER NOT NULL DEFAULT 0,
		avg_reward REAL NOT NULL DEFAULT 0,
		reward_mean REAL NOT NULL DEFAULT 0,
		reward_std REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS episodes (
		run_id TEXT NOT NULL REFERENCES runs(id),
		idx INTEGER NOT NULL,
		lifetime INTEGER NOT NULL,
		total_reward REAL NOT NULL,
		PRIMARY KEY (run_id, idx)
	);

	CREATE TABLE IF NOT EXISTS evaluations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		created_at INTEGER NOT NULL,
		episodes INTEGER NOT NULL,
		avg_lifetime REAL NOT NULL,
		lifetime_std REAL NOT NULL,
		avg_reward REAL NOT NULL,
		action_counts_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		human_id INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_evaluations_run ON evaluations(run_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RunSpec describes a training run about to start.
type RunSpec struct {
	World     string
	Height    int
	Width     int
	NbStates  int
	NbActions int
	Seed      int64
	Config    learning.TrainConfig
}

// Run is a stored training run.
type Run struct {
	ID           string        `db:"id"`
	StartedAt    int64         `db:"started_at"` // Unix seconds
	FinishedAt   sql.NullInt64 `db:"finished_at"`
	World        string        `db:"world"`
	Height       int           `db:"height"`
	Width        int           `db:"width"`
	NbStates     int           `db:"nb_states"`
	NbActions    int           `db:"nb_actions"`
	Episodes     int           `db:"episodes"`
	Alpha        float64       `db:"alpha"`
	Gamma        float64       `db:"gamma"`
	Epsilon      float64       `db:"epsilon"`
	Seed         int64         `db:"seed"`
	Steps        int           `db:"steps"`
	AvgReward    float64       `db:"avg_reward"`
	RewardMean   float64       `db:"reward_mean"`
	RewardStdDev float64       `db:"reward_std"`
}

// Finished reports whether FinishRun was called for the run.
func (r Run) Finished() bool { return r.FinishedAt.Valid }

// EpisodeRow is one stored episode result.
type EpisodeRow struct {
	Index       int     `db:"idx"`
	Lifetime    int     `db:"lifetime"`
	TotalReward float64 `db:"total_reward"`
}

// Evaluation is one stored greedy evaluation.
type Evaluation struct {
	ID           int64   `db:"id"`
	RunID        string  `db:"run_id"`
	CreatedAt    int64   `db:"created_at"`
	Episodes     int     `db:"episodes"`
	AvgLifetime  float64 `db:"avg_lifetime"`
	LifetimeStd  float64 `db:"lifetime_std"`
	AvgReward    float64 `db:"avg_reward"`
	ActionCounts []int   `db:"-"`

	ActionCountsJSON string `db:"action_counts_json"`
}

// CreateRun inserts a new run with a fresh ID.
func (db *DB) CreateRun(spec RunSpec) (Run, error) {
	r := Run{
		ID:        uuid.New().String(),
		StartedAt: time.Now().Unix(),
		World:     spec.World,
		Height:    spec.Height,
		Width:     spec.Width,
		NbStates:  spec.NbStates,
		NbActions: spec.NbActions,
		Episodes:  spec.Config.Episodes,
		Alpha:     spec.Config.Alpha,
		Gamma:     spec.Config.Gamma,
		Epsilon:   spec.Config.Epsilon,
		Seed:      spec.Seed,
	}
	_, err := db.conn.NamedExec(`INSERT INTO runs
		(id, started_at, world, height, width, nb_states, nb_actions,
		 episodes, alpha, gamma, epsilon, seed)
		VALUES (:id, :started_at, :world, :height, :width, :nb_states, :nb_actions,
		 :episodes, :alpha, :gamma, :epsilon, :seed)`, r)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	slog.Info("training run created", "run", r.ID, "world", r.World)
	return r, nil
}

// RecordEpisodes appends episode results to a run in one transaction.
func (db *DB) RecordEpisodes(runID string, eps []learning.Episode) error {
	if len(eps) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO episodes (run_id, idx, lifetime, total_reward) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ep := range eps {
		if _, err := stmt.Exec(runID, ep.Index, ep.Lifetime, ep.TotalReward); err != nil {
			return fmt.Errorf("record episode %d: %w", ep.Index, err)
		}
	}

	return tx.Commit()
}

// FinishRun stores the final training statistics of a run.
func (db *DB) FinishRun(runID string, stats learning.TrainStats) error {
	res, err := db.conn.Exec(`UPDATE runs
		SET finished_at = ?, episodes = ?, steps = ?, avg_reward = ?, reward_mean = ?, reward_std = ?
		WHERE id = ?`,
		time.Now().Unix(), stats.Episodes, stats.Steps, stats.AvgReward,
		stats.RewardMean, stats.RewardStdDev, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// GetRun loads one run.
func (db *DB) GetRun(runID string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", runID)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return r, err
}

// Runs returns the most recent runs, newest first.
func (db *DB) Runs(limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs, "SELECT * FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	return runs, err
}

// RunEpisodes returns the episode results of a run in order.
func (db *DB) RunEpisodes(runID string) ([]EpisodeRow, error) {
	var rows []EpisodeRow
	err := db.conn.Select(&rows,
		"SELECT idx, lifetime, total_reward FROM episodes WHERE run_id = ? ORDER BY idx",
		runID,
	)
	return rows, err
}

// SaveEvaluation stores the result of evaluating a run's policy.
func (db *DB) SaveEvaluation(runID string, stats learning.EvalStats) error {
	counts, err := json.Marshal(stats.ActionCounts)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(`INSERT INTO evaluations
		(run_id, created_at, episodes, avg_lifetime, lifetime_std, avg_reward, action_counts_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, time.Now().Unix(), stats.Episodes, stats.AvgLifetime,
		stats.LifetimeStdDev, stats.AvgReward, string(counts),
	)
	if err != nil {
		return fmt.Errorf("save evaluation: %w", err)
	}
	return nil
}

// Evaluations returns the evaluations of a run, oldest first.
func (db *DB) Evaluations(runID string) ([]Evaluation, error) {
	var evals []Evaluation
	err := db.conn.Select(&evals, "SELECT * FROM evaluations WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, err
	}
	for i := range evals {
		if err := json.Unmarshal([]byte(evals[i].ActionCountsJSON), &evals[i].ActionCounts); err != nil {
			return nil, fmt.Errorf("evaluation %d counts: %w", evals[i].ID, err)
		}
	}
	return evals, nil
}

// SaveEvents appends simulation events.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (tick, human_id, description, category) VALUES (?, ?, ?, ?)",
			e.Tick, e.HumanID, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, human_id, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %q: %w", key, ErrNotFound)
	}
	return value, err
}
