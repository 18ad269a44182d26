package services

import (
	"fmt"
	"math"
	"sort"
	"time"
	_ "time/tzdata"

	"turnover/internal/models"

	"github.com/google/uuid"
)

const (
	AtRiskThreshold = 30 * time.Minute
	hoursPerDay     = 24
)

type DelayInfo struct {
	IsDelayed    bool `json:"isDelayed"`
	DelayMinutes int  `json:"delayMinutes"`
	CanBeDelayed bool `json:"canBeDelayed"`
}

type CountdownKind string

const (
	CountdownKindCountdown CountdownKind = "countdown"
	CountdownKindOverdue   CountdownKind = "overdue"
)

// ReleaseCountdown is the time left until checkout of a waiting schedule, or
// the time elapsed since it when the unit was never released.
type ReleaseCountdown struct {
	Kind    CountdownKind `json:"kind"`
	Days    int           `json:"days"`
	Hours   int           `json:"hours"`
	Minutes int           `json:"minutes"`
}

func (c ReleaseCountdown) Label() string {
	if c.Days > 0 {
		return fmt.Sprintf("%dd %dh", c.Days, c.Hours)
	}
	if c.Hours > 0 {
		return fmt.Sprintf("%dh %dm", c.Hours, c.Minutes)
	}
	return fmt.Sprintf("%dm", c.Minutes)
}

type CleaningAlertLevel string

const (
	CleaningAlertExceeding CleaningAlertLevel = "exceeding"
	CleaningAlertAtRisk    CleaningAlertLevel = "at_risk"
)

func (l CleaningAlertLevel) rank() int {
	if l == CleaningAlertExceeding {
		return 0
	}
	return 1
}

type CleaningTimeAlert struct {
	ScheduleID       uuid.UUID          `json:"scheduleId"`
	PropertyName     string             `json:"propertyName"`
	CleanerName      string             `json:"cleanerName,omitempty"`
	Level            CleaningAlertLevel `json:"level"`
	MinutesRemaining int                `json:"minutesRemaining"`
	CheckIn          time.Time          `json:"checkIn"`
	ProjectedEnd     time.Time          `json:"projectedEnd"`
}

// TimeWindowService derives delay, countdown and cleaning alerts from raw
// checkout/check-in timestamps. All calendar comparisons happen in the
// operator's timezone.
type TimeWindowService struct {
	location               *time.Location
	defaultCleaningMinutes int
}

func NewTimeWindowService(location *time.Location, defaultCleaningMinutes int) *TimeWindowService {
	if location == nil {
		location = time.UTC
	}
	if defaultCleaningMinutes <= 0 {
		defaultCleaningMinutes = 90
	}

	return &TimeWindowService{
		location:               location,
		defaultCleaningMinutes: defaultCleaningMinutes,
	}
}

func (s *TimeWindowService) Location() *time.Location {
	return s.location
}

func (s *TimeWindowService) sameDay(a, b time.Time) bool {
	ay, am, ad := a.In(s.location).Date()
	by, bm, bd := b.In(s.location).Date()
	return ay == by && am == bm && ad == bd
}

// dayIndex orders zone-local calendar dates.
func (s *TimeWindowService) dayIndex(t time.Time) int {
	y, m, d := t.In(s.location).Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// EffectiveCheckIn returns the check-in moved onto the checkout's calendar day
// when the stored check-in belongs to another day's reservation.
func (s *TimeWindowService) EffectiveCheckIn(schedule *models.Schedule) time.Time {
	if schedule.CheckIn.IsZero() || schedule.CheckOut.IsZero() {
		return schedule.CheckIn
	}

	if s.sameDay(schedule.CheckIn, schedule.CheckOut) {
		return schedule.CheckIn
	}

	checkOut := schedule.CheckOut.In(s.location)
	checkIn := schedule.CheckIn.In(s.location)
	return time.Date(
		checkOut.Year(), checkOut.Month(), checkOut.Day(),
		checkIn.Hour(), checkIn.Minute(), 0, 0,
		s.location,
	)
}

func (s *TimeWindowService) IsCheckoutToday(schedule *models.Schedule, now time.Time) bool {
	if schedule.CheckOut.IsZero() {
		return false
	}
	return s.sameDay(schedule.CheckOut, now)
}

func (s *TimeWindowService) Delay(schedule *models.Schedule, now time.Time) DelayInfo {
	if schedule.Status == models.ScheduleStatusCompleted || schedule.CheckOut.IsZero() {
		return DelayInfo{}
	}

	info := DelayInfo{CanBeDelayed: !now.Before(schedule.CheckOut)}
	if !info.CanBeDelayed {
		return info
	}

	effective := s.EffectiveCheckIn(schedule)
	if effective.IsZero() || !now.After(effective) {
		return info
	}

	info.IsDelayed = true
	info.DelayMinutes = int(now.Sub(effective) / time.Minute)
	return info
}

// ReleaseCountdownOrOverdue applies only to waiting schedules. It returns nil
// when checkout falls on a future day.
func (s *TimeWindowService) ReleaseCountdownOrOverdue(
	schedule *models.Schedule,
	now time.Time,
) *ReleaseCountdown {
	if schedule.Status != models.ScheduleStatusWaiting || schedule.CheckOut.IsZero() {
		return nil
	}

	checkoutDay := s.dayIndex(schedule.CheckOut)
	today := s.dayIndex(now)

	switch {
	case checkoutDay < today:
		elapsed := now.Sub(schedule.CheckOut)
		totalHours := int(elapsed / time.Hour)
		return &ReleaseCountdown{
			Kind:  CountdownKindOverdue,
			Days:  totalHours / hoursPerDay,
			Hours: totalHours % hoursPerDay,
		}
	case checkoutDay == today && schedule.CheckOut.After(now):
		return splitHoursMinutes(CountdownKindCountdown, schedule.CheckOut.Sub(now))
	case checkoutDay == today:
		return splitHoursMinutes(CountdownKindOverdue, now.Sub(schedule.CheckOut))
	}

	return nil
}

func splitHoursMinutes(kind CountdownKind, d time.Duration) *ReleaseCountdown {
	totalMinutes := int(d / time.Minute)
	return &ReleaseCountdown{
		Kind:    kind,
		Hours:   totalMinutes / 60,
		Minutes: totalMinutes % 60,
	}
}

func (s *TimeWindowService) estimatedDuration(schedule *models.Schedule) time.Duration {
	minutes := schedule.EstimatedDuration
	if minutes <= 0 {
		minutes = s.defaultCleaningMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// CleaningTimeAlert classifies an in-progress cleaning against the next
// guest's arrival. It returns nil when the cleaning is on track.
func (s *TimeWindowService) CleaningTimeAlert(
	schedule *models.Schedule,
	now time.Time,
) *CleaningTimeAlert {
	if schedule.Status != models.ScheduleStatusCleaning || schedule.StartAt == nil {
		return nil
	}

	checkIn := s.EffectiveCheckIn(schedule)
	if checkIn.IsZero() {
		return nil
	}

	remaining := checkIn.Sub(now)
	projectedEnd := schedule.StartAt.Add(s.estimatedDuration(schedule))

	alert := &CleaningTimeAlert{
		ScheduleID:       schedule.ID,
		PropertyName:     schedule.PropertyName,
		MinutesRemaining: int(math.Floor(remaining.Minutes())),
		CheckIn:          checkIn,
		ProjectedEnd:     projectedEnd,
	}
	if schedule.CleanerName != nil {
		alert.CleanerName = *schedule.CleanerName
	}

	switch {
	case now.After(checkIn):
		alert.Level = CleaningAlertExceeding
	case remaining < AtRiskThreshold, projectedEnd.After(checkIn):
		alert.Level = CleaningAlertAtRisk
	default:
		return nil
	}

	return alert
}

// CleaningAlerts evaluates every schedule and returns the alerts sorted most
// urgent first.
func (s *TimeWindowService) CleaningAlerts(
	schedules []*models.Schedule,
	now time.Time,
) []CleaningTimeAlert {
	alerts := make([]CleaningTimeAlert, 0)
	for _, schedule := range schedules {
		if alert := s.CleaningTimeAlert(schedule, now); alert != nil {
			alerts = append(alerts, *alert)
		}
	}

	SortCleaningAlerts(alerts)
	return alerts
}

// SortCleaningAlerts puts every exceeding alert before every at-risk one and
// orders each group by minutes remaining, ascending.
func SortCleaningAlerts(alerts []CleaningTimeAlert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Level.rank() != alerts[j].Level.rank() {
			return alerts[i].Level.rank() < alerts[j].Level.rank()
		}
		return alerts[i].MinutesRemaining < alerts[j].MinutesRemaining
	})
}
