package models

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestScheduleStatus_Rank(t *testing.T) {
	assert.Equal(t, 0, ScheduleStatusWaiting.Rank())
	assert.Equal(t, 1, ScheduleStatusReleased.Rank())
	assert.Equal(t, 2, ScheduleStatusCleaning.Rank())
	assert.Equal(t, 3, ScheduleStatusCompleted.Rank())
	assert.Equal(t, -1, ScheduleStatus("archived").Rank())
	assert.False(t, ScheduleStatus("archived").Valid())
}

func TestSchedule_HasAcknowledged(t *testing.T) {
	member := uuid.New()
	schedule := &Schedule{
		AckByTeamMembers: []AckEntry{{TeamMemberID: member, AcknowledgedAt: time.Now()}},
	}

	assert.True(t, schedule.HasAcknowledged(member))
	assert.False(t, schedule.HasAcknowledged(uuid.New()))
}

func TestSchedule_LatestNotesAck(t *testing.T) {
	member := uuid.New()
	schedule := &Schedule{
		History: []ScheduleHistoryEvent{
			{ID: "a", TeamMemberID: member, Action: HistoryActionNotesAcknowledged, Payload: map[string]any{"notes_hash": "old"}},
			{ID: "b", TeamMemberID: uuid.New(), Action: HistoryActionNotesAcknowledged},
			{ID: "c", TeamMemberID: member, Action: HistoryActionNotesAcknowledged, Payload: map[string]any{"notes_hash": "new"}},
			{ID: "d", TeamMemberID: member, Action: HistoryActionReleased},
		},
	}

	latest := schedule.LatestNotesAck(member)
	if assert.NotNil(t, latest) {
		assert.Equal(t, "c", latest.ID)
	}
	assert.Nil(t, schedule.LatestNotesAck(uuid.New()))
}

func TestSchedule_ChangedBy(t *testing.T) {
	responsible := uuid.New()
	modifier := uuid.New()

	schedule := &Schedule{ResponsibleTeamMemberID: &responsible}
	assert.Equal(t, &responsible, schedule.ChangedBy())

	schedule.LastModifiedByID = &modifier
	assert.Equal(t, &modifier, schedule.ChangedBy())
}

func TestSchedule_ColumnNames(t *testing.T) {
	typ := reflect.TypeOf(Schedule{})

	checkIn, _ := typ.FieldByName("CheckIn")
	assert.True(t, strings.Contains(checkIn.Tag.Get("gorm"), "column:check_in_time"))

	checkOut, _ := typ.FieldByName("CheckOut")
	assert.True(t, strings.Contains(checkOut.Tag.Get("gorm"), "column:check_out_time"))

	lockVersion, _ := typ.FieldByName("LockVersion")
	assert.True(t, strings.Contains(lockVersion.Tag.Get("gorm"), "not null"))
}
