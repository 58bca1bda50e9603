package jobs

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDatasetRefresh re-ingests a source file and replaces the active dataset.
	TaskDatasetRefresh = "dataset:refresh"
)

// DatasetRefreshPayload names the source file to ingest.
type DatasetRefreshPayload struct {
	Path string `json:"path"`
}

// NewDatasetRefreshTask constructs an Asynq task.
func NewDatasetRefreshTask(payload DatasetRefreshPayload) (*asynq.Task, error) {
	payload.Path = strings.TrimSpace(payload.Path)
	if payload.Path == "" {
		return nil, errors.New("dataset refresh: path required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDatasetRefresh, data), nil
}
