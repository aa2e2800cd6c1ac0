package store

import (
	"sort"

	"github.com/kilianp07/fleetremind/core/model"
)

// NewestFirst orders logs by SentAt descending, breaking ties by ID, and
// applies limit when positive.
func NewestFirst(logs []model.DeliveryLog, limit int) []model.DeliveryLog {
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].SentAt.Equal(logs[j].SentAt) {
			return logs[i].ID > logs[j].ID
		}
		return logs[i].SentAt.After(logs[j].SentAt)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs
}
