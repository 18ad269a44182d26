package repositories

import (
	"context"
	"errors"
	"time"

	contextutil "turnover/internal/context"
	"turnover/internal/database"
	. "turnover/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TEAM_MEMBER_CACHE_PREFIX = "team_member"
	TEAM_MEMBER_CACHE_EXPIRY = 15 * time.Minute
)

var ErrTeamMemberNotFound = errors.New("team member not found")

type TeamMemberRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*TeamMember, error)
	Create(ctx context.Context, member *TeamMember) error
	ListActive(ctx context.Context) ([]*TeamMember, error)
}

type teamMemberRepository struct {
	db  database.DB
	log logger.Logger
}

func NewTeamMemberRepository(db database.DB) TeamMemberRepository {
	return &teamMemberRepository{
		db:  db,
		log: logger.New("teamMemberRepository"),
	}
}

func (r *teamMemberRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextutil.GetTransaction(ctx); ok {
		return tx
	}
	return r.db.SQLWithContext(ctx)
}

// GetByID resolves an active team member, reading through the general cache
// when one is configured.
func (r *teamMemberRepository) GetByID(ctx context.Context, id uuid.UUID) (*TeamMember, error) {
	log := r.log.Function("GetByID")

	var member TeamMember
	if r.db.Cache.General != nil {
		found, err := database.NewCacheBuilder(r.db.Cache.General, id).
			WithHash(TEAM_MEMBER_CACHE_PREFIX).
			WithContext(ctx).
			Get(&member)
		if err != nil {
			log.Warn("failed to read team member cache", "id", id, "error", err)
		}
		if found {
			return &member, nil
		}
	}

	if err := r.getDB(ctx).First(&member, "id = ? AND is_active = ?", id, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamMemberNotFound
		}
		return nil, log.Err("failed to get team member", err, "id", id)
	}

	if r.db.Cache.General != nil {
		if err := database.NewCacheBuilder(r.db.Cache.General, id).
			WithHash(TEAM_MEMBER_CACHE_PREFIX).
			WithStruct(member).
			WithTTL(TEAM_MEMBER_CACHE_EXPIRY).
			WithContext(ctx).
			Set(); err != nil {
			log.Warn("failed to cache team member", "id", id, "error", err)
		}
	}

	return &member, nil
}

func (r *teamMemberRepository) Create(ctx context.Context, member *TeamMember) error {
	log := r.log.Function("Create")

	if !member.Role.Valid() {
		return log.Error("invalid team member role", "role", member.Role)
	}

	if err := r.getDB(ctx).Create(member).Error; err != nil {
		return log.Err("failed to create team member", err, "name", member.Name)
	}

	return nil
}

func (r *teamMemberRepository) ListActive(ctx context.Context) ([]*TeamMember, error) {
	log := r.log.Function("ListActive")

	var members []*TeamMember
	if err := r.getDB(ctx).Where("is_active = ?", true).Order("name ASC").Find(&members).Error; err != nil {
		return nil, log.Err("failed to list team members", err)
	}

	return members, nil
}
