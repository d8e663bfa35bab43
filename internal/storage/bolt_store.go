package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"echobench/internal/runner"
	"echobench/internal/stats"
)

const (
	BucketRuns = "runs"
)

var ErrNotFound = errors.New("history item not found")

// HistoryItem is one finished comparison as persisted in the history database.
type HistoryItem struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Config    runner.Config     `json:"config"`
	Runs      []RunSummary      `json:"runs"`
	Winners   map[string]string `json:"winners,omitempty"`
}

type RunSummary struct {
	Transport     string        `json:"transport"`
	Sent          int           `json:"sent"`
	Completed     int           `json:"completed"`
	Failed        int           `json:"failed"`
	ThroughputRPS float64       `json:"throughput_rps"`
	Latency       stats.Summary `json:"latency"`
}

type Store struct {
	db       *bbolt.DB
	filePath string
}

// DefaultPath is $HOME/.echobench/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "locate home directory")
	}
	return filepath.Join(home, ".echobench", "history.db"), nil
}

func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "create history directory for %s", path)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open history %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialise history buckets")
	}

	return &Store{
		db:       db,
		filePath: path,
	}, nil
}

func (s *Store) Path() string { return s.filePath }

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save assigns a time-ordered ID and Timestamp when they are unset and
// persists the item. It returns the stored item.
func (s *Store) Save(item HistoryItem) (HistoryItem, error) {
	if item.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return item, errors.Wrap(err, "generate history id")
		}
		item.ID = id.String()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}

	data, err := json.Marshal(item)
	if err != nil {
		return item, errors.Wrap(err, "encode history item")
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(BucketRuns)).Put([]byte(item.ID), data)
	})
	return item, errors.Wrap(err, "save history item")
}

// List returns up to limit items, newest first. A limit <= 0 returns all.
// UUIDv7 keys sort by creation time, so a reverse cursor walk is enough.
func (s *Store) List(limit int) ([]HistoryItem, error) {
	var items []HistoryItem

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(BucketRuns)).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var item HistoryItem
			if err := json.Unmarshal(v, &item); err != nil {
				return errors.Wrapf(err, "decode history item %s", k)
			}
			items = append(items, item)
			if limit > 0 && len(items) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) Get(id string) (*HistoryItem, error) {
	var item HistoryItem
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(BucketRuns)).Get([]byte(id))
		if v == nil {
			return errors.Wrap(ErrNotFound, id)
		}
		return json.Unmarshal(v, &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}
