package database

import (
	"time"

	"github.com/rs/zerolog"
)

type ImportStatus string

const (
	ImportStatusRunning   ImportStatus = "running"
	ImportStatusSucceeded ImportStatus = "succeeded"
	ImportStatusFailed    ImportStatus = "failed"
)

type ImportRun struct {
	ID              uint   `gorm:"primaryKey"`
	Path            string `gorm:"index"`
	MountedPath     string
	ImporterVersion uint32
	Status          ImportStatus `gorm:"index"`
	Error           string
	Outputs         int
	StartedAt       time.Time
	FinishedAt      *time.Time
	CreatedAt       time.Time
}

// Duration is zero for runs that have not finished.
func (r ImportRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r ImportRun) MarshalZerologObject(e *zerolog.Event) {
	e.Uint("id", r.ID)
	e.Str("path", r.Path)
	if r.MountedPath != "" {
		e.Str("mounted_path", r.MountedPath)
	}
	e.Str("status", string(r.Status))
	e.Uint32("importer_version", r.ImporterVersion)
	e.Time("started_at", r.StartedAt)
	if r.FinishedAt != nil {
		e.Dur("elapsed", r.Duration())
		e.Int("outputs", r.Outputs)
	}
	if r.Error != "" {
		e.Str("error", r.Error)
	}
}
