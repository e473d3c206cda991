package runstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/simsomlab/simsom/pkg/config"
)

var bucketRuns = []byte("runs")

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusConverged RunStatus = "converged"
	StatusStopped   RunStatus = "stopped"
	StatusFailed    RunStatus = "failed"
)

// RunRecord is the registry entry for one simulation run.
type RunRecord struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Status     RunStatus `json:"status"`

	// Reason is the analyzer's convergence reason, empty otherwise.
	Reason string `json:"reason,omitempty"`
	// Error is the first participant error of a failed run.
	Error string `json:"error,omitempty"`

	OutputDir    string `json:"output_dir"`
	Participants int    `json:"participants"`
	Users        int    `json:"users"`

	// Config snapshot taken at launch, for reproducing the run.
	Network   *config.NetworkConfig   `json:"network,omitempty"`
	Simulator *config.SimulatorConfig `json:"simulator,omitempty"`

	ActivityRows  int64   `json:"activity_rows"`
	PassivityRows int64   `json:"passivity_rows"`
	MeanQuality   float64 `json:"mean_quality"`
}

// Store is a BoltDB-backed registry of simulation runs.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the registry under dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "simsom.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun upserts a run record.
func (s *Store) SaveRun(rec *RunRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.ID), data)
	})
}

// GetRun fetches one run record by id.
func (s *Store) GetRun(id string) (*RunRecord, error) {
	var rec RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("run not found: %s", id)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRuns returns every recorded run, newest first.
func (s *Store) ListRuns() ([]*RunRecord, error) {
	var runs []*RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		return b.ForEach(func(k, v []byte) error {
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			runs = append(runs, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}

// DeleteRun removes a run record. Deleting a missing id is not an
// error.
func (s *Store) DeleteRun(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).Delete([]byte(id))
	})
}
