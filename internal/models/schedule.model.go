package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ScheduleStatus string

const (
	ScheduleStatusWaiting   ScheduleStatus = "waiting"
	ScheduleStatusReleased  ScheduleStatus = "released"
	ScheduleStatusCleaning  ScheduleStatus = "cleaning"
	ScheduleStatusCompleted ScheduleStatus = "completed"
)

var scheduleStatusOrder = map[ScheduleStatus]int{
	ScheduleStatusWaiting:   0,
	ScheduleStatusReleased:  1,
	ScheduleStatusCleaning:  2,
	ScheduleStatusCompleted: 3,
}

func (s ScheduleStatus) Valid() bool {
	_, ok := scheduleStatusOrder[s]
	return ok
}

// Rank is the position of the status along the lifecycle, -1 when unknown.
func (s ScheduleStatus) Rank() int {
	rank, ok := scheduleStatusOrder[s]
	if !ok {
		return -1
	}
	return rank
}

func (s ScheduleStatus) Ptr() *ScheduleStatus {
	return &s
}

type HistoryAction string

const (
	HistoryActionReleased          HistoryAction = "released"
	HistoryActionCleaningStarted   HistoryAction = "cleaning_started"
	HistoryActionCleaningCompleted HistoryAction = "cleaning_completed"
	HistoryActionAdminRevert       HistoryAction = "admin_revert"
	HistoryActionInfoAcknowledged  HistoryAction = "info_acknowledged"
	HistoryActionNotesAcknowledged HistoryAction = "notes_acknowledged"
	HistoryActionNotesUpdated      HistoryAction = "notes_updated"
)

// ScheduleHistoryEvent is one entry of the append-only audit trail stored on
// the schedule row.
type ScheduleHistoryEvent struct {
	ID             string          `json:"id"`
	TeamMemberID   uuid.UUID       `json:"team_member_id"`
	TeamMemberName string          `json:"team_member_name"`
	Role           Role            `json:"role"`
	Action         HistoryAction   `json:"action"`
	FromStatus     *ScheduleStatus `json:"from_status,omitempty"`
	ToStatus       *ScheduleStatus `json:"to_status,omitempty"`
	Payload        map[string]any  `json:"payload,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type AckEntry struct {
	TeamMemberID   uuid.UUID `json:"team_member_id"`
	AcknowledgedAt time.Time `json:"acknowledged_at"`
}

type MaintenanceIssue struct {
	ID          string    `json:"id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Urgent      bool      `json:"urgent"`
	PhotoURLs   []string  `json:"photo_urls,omitempty"`
	ReportedBy  uuid.UUID `json:"reported_by"`
	ReportedAt  time.Time `json:"reported_at"`
}

type CategoryPhoto struct {
	URL        string    `json:"url"`
	Path       string    `json:"path,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type CategoryPhotos map[string][]CategoryPhoto

type Schedule struct {
	BaseUUIDModel
	PropertyID              uuid.UUID                                 `gorm:"type:uuid;not null;index"                    json:"propertyId"`
	PropertyName            string                                    `gorm:"type:text"                                   json:"propertyName"`
	CheckIn                 time.Time                                 `gorm:"column:check_in_time;not null"               json:"checkIn"`
	CheckOut                time.Time                                 `gorm:"column:check_out_time;not null;index"        json:"checkOut"`
	Status                  ScheduleStatus                            `gorm:"type:varchar(16);not null;default:'waiting';index" json:"status"`
	ResponsibleTeamMemberID *uuid.UUID                                `gorm:"type:uuid;index"                             json:"responsibleTeamMemberId,omitempty"`
	CleanerName             *string                                   `gorm:"type:text"                                   json:"cleanerName,omitempty"`
	StartAt                 *time.Time                                `                                                   json:"startAt,omitempty"`
	EndAt                   *time.Time                                `                                                   json:"endAt,omitempty"`
	EstimatedDuration       int                                       `gorm:"not null;default:0"                          json:"estimatedDuration"`
	Checklist               datatypes.JSON                            `                                                   json:"checklist"`
	MaintenanceIssues       datatypes.JSONSlice[MaintenanceIssue]     `                                                   json:"maintenanceIssues"`
	Notes                   string                                    `gorm:"type:text"                                   json:"notes"`
	ImportantInfo           string                                    `gorm:"type:text"                                   json:"importantInfo"`
	CleanerObservations     string                                    `gorm:"type:text"                                   json:"cleanerObservations"`
	AckByTeamMembers        datatypes.JSONSlice[AckEntry]             `                                                   json:"ackByTeamMembers"`
	History                 datatypes.JSONSlice[ScheduleHistoryEvent] `                                                   json:"history"`
	CategoryPhotos          datatypes.JSONType[CategoryPhotos]        `                                                   json:"categoryPhotos"`
	LockVersion             int                                       `gorm:"not null;default:0"                          json:"lockVersion"`
	LastModifiedByID        *uuid.UUID                                `gorm:"type:uuid"                                   json:"lastModifiedById,omitempty"`
	AdminRevertReason       *string                                   `gorm:"type:text"                                   json:"adminRevertReason,omitempty"`
	IsActive                bool                                      `gorm:"not null;default:true"                       json:"isActive"`
}

func (s *Schedule) ChecklistItems() []ChecklistItem {
	return ParseChecklist(s.Checklist)
}

func (s *Schedule) HasAcknowledged(teamMemberID uuid.UUID) bool {
	for _, ack := range s.AckByTeamMembers {
		if ack.TeamMemberID == teamMemberID {
			return true
		}
	}
	return false
}

// LatestNotesAck returns the most recent notes acknowledgment made by the
// team member, or nil.
func (s *Schedule) LatestNotesAck(teamMemberID uuid.UUID) *ScheduleHistoryEvent {
	for i := len(s.History) - 1; i >= 0; i-- {
		event := s.History[i]
		if event.Action == HistoryActionNotesAcknowledged && event.TeamMemberID == teamMemberID {
			return &event
		}
	}
	return nil
}

// ChangedBy reports who performed the most recent persisted mutation, falling
// back to the responsible team member for rows written before the column
// existed.
func (s *Schedule) ChangedBy() *uuid.UUID {
	if s.LastModifiedByID != nil {
		return s.LastModifiedByID
	}
	return s.ResponsibleTeamMemberID
}

func (s *Schedule) IsResponsible(teamMemberID uuid.UUID) bool {
	return s.ResponsibleTeamMemberID != nil && *s.ResponsibleTeamMemberID == teamMemberID
}
