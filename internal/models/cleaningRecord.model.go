package models

import (
	"time"

	"github.com/google/uuid"
)

// CleaningRecord is written once per completed cleaning.
type CleaningRecord struct {
	BaseUUIDModel
	ScheduleID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"scheduleId"`
	TeamMemberID    uuid.UUID `gorm:"type:uuid;not null;index"       json:"teamMemberId"`
	StartedAt       time.Time `gorm:"not null"                       json:"startedAt"`
	CompletedAt     time.Time `gorm:"not null"                       json:"completedAt"`
	DurationMinutes int       `gorm:"not null"                       json:"durationMinutes"`
	ChecklistOK     int       `gorm:"not null;default:0"             json:"checklistOk"`
	ChecklistNotOK  int       `gorm:"not null;default:0"             json:"checklistNotOk"`
	IssuesReported  int       `gorm:"not null;default:0"             json:"issuesReported"`
	Observations    string    `gorm:"type:text"                      json:"observations"`
}
