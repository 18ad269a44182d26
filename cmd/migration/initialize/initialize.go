package initialize

import (
	"errors"

	"turnover/config"
	. "turnover/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"gorm.io/gorm"
)

const DEFAULT_ADMIN_NAME = "Administrator"

func InitializeTables(db *gorm.DB, config config.Config, log logger.Logger) error {
	log = log.Function("InitializeTables")
	log.Info("Initializing essential production data")

	if err := initializeAdmin(db, log); err != nil {
		return log.Err("failed to initialize admin", err)
	}

	log.Info("Table initialization complete")
	return nil
}

// initializeAdmin makes sure at least one active admin exists so schedules
// can always be reverted.
func initializeAdmin(db *gorm.DB, log logger.Logger) error {
	var existing TeamMember
	err := db.First(&existing, "role = ? AND is_active = ?", RoleAdmin, true).Error
	if err == nil {
		log.Debug("Admin already exists", "teamMemberID", existing.ID)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return log.Err("failed to look up admin", err)
	}

	admin := TeamMember{
		Name:     DEFAULT_ADMIN_NAME,
		Role:     RoleAdmin,
		IsActive: true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return log.Err("failed to create admin", err)
	}

	log.Info("Created default admin", "teamMemberID", admin.ID)
	return nil
}
