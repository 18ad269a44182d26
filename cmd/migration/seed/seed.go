package seed

import (
	"time"

	"turnover/config"
	"turnover/internal/clock"
	. "turnover/internal/models"
	"turnover/internal/services"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func stringPtr(s string) *string {
	return &s
}

const defaultChecklist = `[
	{"id":"beds","title":"Make beds with fresh linen"},
	{"id":"towels","title":"Replace towels"},
	{"id":"kitchen","title":"Clean kitchen and empty fridge"},
	{"id":"bathroom","title":"Sanitize bathroom"},
	{"id":"trash","title":"Take out trash"}
]`

// Seed creates a small team and today's turnovers in the operator timezone,
// then logs a development token per team member.
func Seed(db *gorm.DB, config config.Config, log logger.Logger) error {
	log = log.Function("seed")
	log.Info("Seeding development data")

	members := []TeamMember{
		{Name: "Ana Admin", Email: stringPtr("ana@example.com"), Role: RoleAdmin, IsActive: true},
		{Name: "Marcos Manager", Email: stringPtr("marcos@example.com"), Role: RoleManager, IsActive: true},
		{Name: "Clara Cleaner", Email: stringPtr("clara@example.com"), Role: RoleCleaner, IsActive: true},
		{Name: "Bia Cleaner", Email: stringPtr("bia@example.com"), Role: RoleCleaner, IsActive: true},
	}

	for i := range members {
		var existing TeamMember
		if err := db.First(&existing, "email = ?", *members[i].Email).Error; err == nil {
			log.Info("Team member already exists", "email", *members[i].Email)
			members[i] = existing
			continue
		}
		if err := db.Create(&members[i]).Error; err != nil {
			return log.Err("failed to create team member", err, "name", members[i].Name)
		}
	}

	location, err := config.Location()
	if err != nil {
		return log.Err("failed to load operator timezone", err)
	}

	now := time.Now().In(location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, location)

	schedules := []Schedule{
		{
			PropertyID:        uuid.New(),
			PropertyName:      "Beach House 3",
			CheckOut:          today.Add(11 * time.Hour),
			CheckIn:           today.Add(15 * time.Hour),
			Status:            ScheduleStatusWaiting,
			EstimatedDuration: 120,
			ImportantInfo:     "Guest reported a broken shower handle",
			Notes:             "Key box code 4821",
		},
		{
			PropertyID:        uuid.New(),
			PropertyName:      "Downtown Loft 12",
			CheckOut:          today.Add(10 * time.Hour),
			CheckIn:           today.Add(16 * time.Hour),
			Status:            ScheduleStatusReleased,
			EstimatedDuration: 90,
			Notes:             "Leave spare towels in the closet",
		},
		{
			PropertyID:        uuid.New(),
			PropertyName:      "Garden Studio",
			CheckOut:          today.Add(-24 * time.Hour).Add(11 * time.Hour),
			CheckIn:           today.Add(14 * time.Hour),
			Status:            ScheduleStatusWaiting,
			EstimatedDuration: 60,
		},
	}

	for i := range schedules {
		schedules[i].Checklist = datatypes.JSON(defaultChecklist)
		schedules[i].IsActive = true
		if err := db.Create(&schedules[i]).Error; err != nil {
			return log.Err("failed to create schedule", err, "property", schedules[i].PropertyName)
		}
	}

	auth := services.NewAuthService(config.JWTSecret, 30*24*time.Hour, clock.New())
	for i := range members {
		token, err := auth.IssueToken(&members[i])
		if err != nil {
			return log.Err("failed to issue development token", err, "name", members[i].Name)
		}
		log.Info("Development token", "name", members[i].Name, "role", members[i].Role, "token", token)
	}

	log.Info("Seed complete", "teamMembers", len(members), "schedules", len(schedules))
	return nil
}
