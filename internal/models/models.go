package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

type BaseModel struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Run is the history row of one workflow run.
type Run struct {
	BaseModel
	RunID         string     `json:"run_id" gorm:"uniqueIndex;size:36;not null"`
	Kind          string     `json:"kind" gorm:"size:40;not null;index"`
	Trigger       string     `json:"trigger" gorm:"size:20"`      // cli, api, schedule
	Status        string     `json:"status" gorm:"size:20;index"` // running, ok, failed
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	Duration      int        `json:"duration"` // in milliseconds
	CreatedCount  int        `json:"created_count"`
	UpdatedCount  int        `json:"updated_count"`
	SkippedCount  int        `json:"skipped_count"`
	FailedCount   int        `json:"failed_count"`
	AbortedCount  int        `json:"aborted_count"`
	ErrorMessage  string     `json:"error_message" gorm:"type:text"`
	Records       string     `json:"records" gorm:"type:longtext"`        // JSON array of record outcomes
	ExecutionLogs string     `json:"execution_logs" gorm:"type:longtext"` // JSON array of progress events
	Screenshots   string     `json:"screenshots" gorm:"type:text"`        // JSON array of screenshot paths
}

// GetScreenshots decodes the Screenshots column.
func (r *Run) GetScreenshots() ([]string, error) {
	var paths []string
	if r.Screenshots == "" {
		return paths, nil
	}
	err := json.Unmarshal([]byte(r.Screenshots), &paths)
	return paths, err
}

// GetRecords decodes the Records column into out.
func (r *Run) GetRecords(out any) error {
	if r.Records == "" {
		return nil
	}
	return json.Unmarshal([]byte(r.Records), out)
}

// GetLogs decodes the ExecutionLogs column into out.
func (r *Run) GetLogs(out any) error {
	if r.ExecutionLogs == "" {
		return nil
	}
	return json.Unmarshal([]byte(r.ExecutionLogs), out)
}

// SetJSON encodes v into one of the JSON text columns.
func SetJSON(dst *string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	*dst = string(b)
	return nil
}
