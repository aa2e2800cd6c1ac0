package deliverylog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/store"
)

// RotatingJSONLStore stores delivery logs in a JSONL file with automatic rotation.
type RotatingJSONLStore struct {
	mu     sync.Mutex
	logger *lumberjack.Logger
	path   string
}

var _ store.DeliveryLogStore = (*RotatingJSONLStore)(nil)

// NewRotatingJSONLStore creates a store with rotation options in megabytes and days.
func NewRotatingJSONLStore(path string, maxSizeMB, maxBackups, maxAgeDays int) (*RotatingJSONLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
	return &RotatingJSONLStore{logger: lj, path: path}, nil
}

// Append writes the entry and triggers rotation if needed.
func (s *RotatingJSONLStore) Append(_ context.Context, entry model.DeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.NewEncoder(s.logger).Encode(entry)
}

func (s *RotatingJSONLStore) Get(ctx context.Context, id string) (model.DeliveryLog, error) {
	rows, err := s.scan(func(l model.DeliveryLog) bool { return l.ID == id })
	if err != nil {
		return model.DeliveryLog{}, err
	}
	if len(rows) == 0 {
		return model.DeliveryLog{}, fmt.Errorf("delivery log %s: %w", id, store.ErrNotFound)
	}
	return rows[0], nil
}

// Query reads the active file and every rotated backup.
func (s *RotatingJSONLStore) Query(_ context.Context, q store.LogQuery) ([]model.DeliveryLog, error) {
	rows, err := s.scan(q.Match)
	if err != nil {
		return nil, err
	}
	return store.NewestFirst(rows, q.Limit), nil
}

func (s *RotatingJSONLStore) scan(keep func(model.DeliveryLog) bool) ([]model.DeliveryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ext := filepath.Ext(s.path)
	base := s.path[:len(s.path)-len(ext)]
	// lumberjack names backups <base>-<timestamp><ext>.
	files, err := filepath.Glob(base + "*" + ext)
	if err != nil {
		return nil, err
	}
	var res []model.DeliveryLog
	for _, f := range files {
		if err := scanFile(f, func(l model.DeliveryLog) {
			if keep(l) {
				res = append(res, l)
			}
		}); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Close closes the underlying writer.
func (s *RotatingJSONLStore) Close() error {
	return s.logger.Close()
}
