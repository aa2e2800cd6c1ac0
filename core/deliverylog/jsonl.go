// Package deliverylog persists and records delivery attempts.
package deliverylog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/store"
)

// JSONLStore stores delivery logs in a JSONL file.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

var _ store.DeliveryLogStore = (*JSONLStore)(nil)

func NewJSONLStore(path string) (*JSONLStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &JSONLStore{path: path}, nil
}

func (s *JSONLStore) Append(_ context.Context, entry model.DeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(entry)
}

func (s *JSONLStore) Get(_ context.Context, id string) (model.DeliveryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *model.DeliveryLog
	err := scanFile(s.path, func(l model.DeliveryLog) {
		if l.ID == id {
			found = &l
		}
	})
	if err != nil {
		return model.DeliveryLog{}, err
	}
	if found == nil {
		return model.DeliveryLog{}, fmt.Errorf("delivery log %s: %w", id, store.ErrNotFound)
	}
	return *found, nil
}

func (s *JSONLStore) Query(_ context.Context, q store.LogQuery) ([]model.DeliveryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.DeliveryLog
	err := scanFile(s.path, func(l model.DeliveryLog) {
		if q.Match(l) {
			res = append(res, l)
		}
	})
	if err != nil {
		return nil, err
	}
	return store.NewestFirst(res, q.Limit), nil
}

func (s *JSONLStore) Close() error { return nil }

// scanFile decodes every line of path, skipping malformed ones. A missing file
// yields no rows.
func scanFile(path string, fn func(model.DeliveryLog)) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var l model.DeliveryLog
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
			continue
		}
		fn(l)
	}
	return scanner.Err()
}
