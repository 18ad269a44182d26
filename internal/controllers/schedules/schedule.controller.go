package schedulesController

import (
	"context"
	"errors"
	"fmt"
	"time"

	"turnover/internal/models"
	"turnover/internal/repositories"
	"turnover/internal/services"
	"turnover/internal/utils"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	MaxObservationsLength = 4000
	MaxNotesLength        = 4000
	MaxIssueLength        = 1000
)

var ErrValidation = errors.New("validation error")

type CompleteCleaningRequest struct {
	Checklist         []models.ChecklistItem  `json:"checklist"`
	Observations      string                  `json:"observations"`
	MaintenanceIssues []MaintenanceIssueInput `json:"maintenanceIssues"`
	CategoryPhotos    models.CategoryPhotos   `json:"categoryPhotos"`
}

type MaintenanceIssueInput struct {
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Urgent      bool     `json:"urgent"`
	PhotoURLs   []string `json:"photoUrls"`
}

type RevertRequest struct {
	Status models.ScheduleStatus `json:"status"`
	Reason string                `json:"reason"`
}

type UpdateNotesRequest struct {
	Notes string `json:"notes"`
}

type CompleteCleaningResponse struct {
	Schedule *models.Schedule       `json:"schedule"`
	Record   *models.CleaningRecord `json:"record"`
}

type ScheduleControllerInterface interface {
	GetSchedule(ctx context.Context, id uuid.UUID) (*models.Schedule, error)
	Release(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Schedule, error)
	CheckConcurrency(
		ctx context.Context,
		actor models.Actor,
		id uuid.UUID,
	) (services.ConcurrencyCheck, error)
	StartCleaning(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Schedule, error)
	CompleteCleaning(
		ctx context.Context,
		actor models.Actor,
		id uuid.UUID,
		request *CompleteCleaningRequest,
	) (*CompleteCleaningResponse, error)
	AdminRevert(
		ctx context.Context,
		actor models.Actor,
		id uuid.UUID,
		request *RevertRequest,
	) (*models.Schedule, error)
	AcknowledgeImportantInfo(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Schedule, error)
	AcknowledgeNotes(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Schedule, error)
	UpdateNotes(
		ctx context.Context,
		actor models.Actor,
		id uuid.UUID,
		request *UpdateNotesRequest,
	) (*models.Schedule, error)
	ScheduleAlerts(ctx context.Context, id uuid.UUID) (services.ScheduleAlerts, error)
	CleaningAlerts(ctx context.Context) (services.CleaningAlertsSnapshot, error)
	GetDraft(ctx context.Context, actor models.Actor, id uuid.UUID) (*services.CleaningCacheData, error)
	DraftExists(ctx context.Context, actor models.Actor, id uuid.UUID) (bool, error)
	SaveDraft(
		ctx context.Context,
		actor models.Actor,
		id uuid.UUID,
		patch *services.CleaningCachePatch,
	) (*services.CleaningCacheData, error)
	ClearDraft(ctx context.Context, actor models.Actor, id uuid.UUID) error
}

type ScheduleController struct {
	scheduleRepo       repositories.ScheduleRepository
	cleaningRecordRepo repositories.CleaningRecordRepository
	transactionService *services.TransactionService
	lifecycle          *services.LifecycleService
	claims             *services.ClaimService
	acks               *services.AcknowledgmentService
	alerts             *services.AlertService
	drafts             *services.DraftService
	log                logger.Logger
}

func New(repos repositories.Repository, svc services.Service) ScheduleControllerInterface {
	return &ScheduleController{
		scheduleRepo:       repos.Schedule,
		cleaningRecordRepo: repos.CleaningRecord,
		transactionService: svc.Transaction,
		lifecycle:          svc.Lifecycle,
		claims:             svc.Claim,
		acks:               svc.Acknowledgment,
		alerts:             svc.Alert,
		drafts:             svc.Draft,
		log:                logger.New("schedulesController"),
	}
}

func (c *ScheduleController) GetSchedule(ctx context.Context, id uuid.UUID) (*models.Schedule, error) {
	return c.scheduleRepo.GetSchedule(ctx, id)
}

func (c *ScheduleController) Release(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
) (*models.Schedule, error) {
	return c.lifecycle.Release(ctx, actor, id)
}

func (c *ScheduleController) CheckConcurrency(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
) (services.ConcurrencyCheck, error) {
	return c.claims.CheckConcurrency(ctx, id, actor)
}

// StartCleaning checks the actor's role, runs the advisory check so a visibly
// taken unit fails fast, then claims atomically. Only the claim decides.
func (c *ScheduleController) StartCleaning(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
) (*models.Schedule, error) {
	log := c.log.TraceFromContext(ctx).Function("StartCleaning")

	if !services.CanEnter(actor.Role, models.ScheduleStatusCleaning) {
		return nil, fmt.Errorf("%w: %s cannot start a cleaning", services.ErrUnauthorized, actor.Role)
	}

	check, err := c.claims.CheckConcurrency(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if check.HeldByActor {
		return nil, fmt.Errorf("%w: cleaning already started by this team member", services.ErrInvalidTransition)
	}
	if !check.CanStart && check.ResponsibleName != "" {
		log.Info("Claim rejected by pre-check", "scheduleID", id, "holder", check.ResponsibleName)
		return nil, fmt.Errorf("%w: %s", services.ErrAlreadyStarted, check.ResponsibleName)
	}

	schedule, err := c.claims.StartCleaningAtomic(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	c.drafts.For(schedule, actor.ID)
	return schedule, nil
}

func normalizeChecklist(items []models.ChecklistItem) []models.ChecklistItem {
	normalized := make([]models.ChecklistItem, len(items))
	for i, item := range items {
		item.Title = utils.CleanText(item.Title)
		if !item.Status.Valid() {
			item.Status = models.ChecklistStatusPending
		}
		item.Completed = item.Status == models.ChecklistStatusOK
		normalized[i] = item
	}
	return normalized
}

func countChecklist(items []models.ChecklistItem) (ok, notOK int) {
	for _, item := range items {
		switch item.Status {
		case models.ChecklistStatusOK:
			ok++
		case models.ChecklistStatusNotOK:
			notOK++
		}
	}
	return ok, notOK
}

func validateCompletion(request *CompleteCleaningRequest) error {
	if len(request.Observations) > MaxObservationsLength {
		return fmt.Errorf("%w: observations exceed %d characters", ErrValidation, MaxObservationsLength)
	}

	for _, issue := range request.MaintenanceIssues {
		if utils.CleanText(issue.Description) == "" {
			return fmt.Errorf("%w: maintenance issue description is required", ErrValidation)
		}
		if len(issue.Description) > MaxIssueLength {
			return fmt.Errorf("%w: maintenance issue exceeds %d characters", ErrValidation, MaxIssueLength)
		}
	}

	return nil
}

// CompleteCleaning moves a cleaning to completed together with everything the
// cleaner captured, and writes the cleaning record in the same transaction.
// The change is published and the drafts of the actor and the responsible
// cleaner cleared only after commit.
func (c *ScheduleController) CompleteCleaning(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
	request *CompleteCleaningRequest,
) (*CompleteCleaningResponse, error) {
	log := c.log.TraceFromContext(ctx).Function("CompleteCleaning")

	if request == nil {
		request = &CompleteCleaningRequest{}
	}
	if err := validateCompletion(request); err != nil {
		return nil, err
	}

	observations := utils.CleanText(request.Observations)

	var (
		schedule    *models.Schedule
		record      *models.CleaningRecord
		completedAt time.Time
	)

	err := c.transactionService.Execute(ctx, func(txCtx context.Context) error {
		var err error
		schedule, err = c.lifecycle.Transition(
			txCtx,
			actor,
			id,
			models.ScheduleStatusCompleted,
			func(current *models.Schedule, now time.Time) (repositories.ScheduleFields, error) {
				if actor.Role != models.RoleAdmin && !current.IsResponsible(actor.ID) {
					return nil, fmt.Errorf("%w: only the responsible cleaner can complete", services.ErrUnauthorized)
				}
				completedAt = now

				checklist := current.ChecklistItems()
				if request.Checklist != nil {
					checklist = normalizeChecklist(request.Checklist)
				}
				encoded, err := models.EncodeChecklist(checklist)
				if err != nil {
					return nil, err
				}

				issues := append([]models.MaintenanceIssue{}, current.MaintenanceIssues...)
				for _, input := range request.MaintenanceIssues {
					issues = append(issues, models.MaintenanceIssue{
						ID:          uuid.NewString(),
						Category:    utils.CleanText(input.Category),
						Description: utils.CleanText(input.Description),
						Urgent:      input.Urgent,
						PhotoURLs:   input.PhotoURLs,
						ReportedBy:  actor.ID,
						ReportedAt:  now,
					})
				}

				fields := repositories.ScheduleFields{
					"checklist":            datatypes.JSON(encoded),
					"cleaner_observations": observations,
					"maintenance_issues":   datatypes.JSONSlice[models.MaintenanceIssue](issues),
					"end_at":               now,
				}
				if request.CategoryPhotos != nil {
					fields["category_photos"] = datatypes.NewJSONType(request.CategoryPhotos)
				}
				return fields, nil
			},
			map[string]any{"issues_reported": len(request.MaintenanceIssues)},
		)
		if err != nil {
			return err
		}

		record = newCleaningRecord(schedule, actor, len(request.MaintenanceIssues), completedAt)
		return c.cleaningRecordRepo.Create(txCtx, record)
	})
	if err != nil {
		return nil, err
	}

	if err := c.scheduleRepo.PublishUpdate(schedule); err != nil {
		log.Warn("failed to publish completed schedule", "scheduleID", id, "error", err)
	}

	draftOwners := []uuid.UUID{actor.ID}
	if record.TeamMemberID != actor.ID {
		draftOwners = append(draftOwners, record.TeamMemberID)
	}
	for _, owner := range draftOwners {
		if err := c.drafts.Clear(ctx, id, owner); err != nil {
			log.Warn("failed to clear draft after completion", "scheduleID", id, "teamMemberID", owner, "error", err)
		}
	}

	log.Info("Cleaning completed", "scheduleID", id, "actor", actor.ID, "duration", record.DurationMinutes)
	return &CompleteCleaningResponse{Schedule: schedule, Record: record}, nil
}

func newCleaningRecord(
	schedule *models.Schedule,
	actor models.Actor,
	issues int,
	completedAt time.Time,
) *models.CleaningRecord {
	if schedule.EndAt != nil {
		completedAt = *schedule.EndAt
	}

	startedAt := completedAt
	if schedule.StartAt != nil {
		startedAt = *schedule.StartAt
	}

	teamMemberID := actor.ID
	if schedule.ResponsibleTeamMemberID != nil {
		teamMemberID = *schedule.ResponsibleTeamMemberID
	}

	ok, notOK := countChecklist(schedule.ChecklistItems())
	return &models.CleaningRecord{
		ScheduleID:      schedule.ID,
		TeamMemberID:    teamMemberID,
		StartedAt:       startedAt,
		CompletedAt:     completedAt,
		DurationMinutes: int(completedAt.Sub(startedAt) / time.Minute),
		ChecklistOK:     ok,
		ChecklistNotOK:  notOK,
		IssuesReported:  issues,
		Observations:    schedule.CleanerObservations,
	}
}

func (c *ScheduleController) AdminRevert(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
	request *RevertRequest,
) (*models.Schedule, error) {
	if request == nil || !request.Status.Valid() {
		return nil, fmt.Errorf("%w: a valid target status is required", ErrValidation)
	}

	return c.lifecycle.AdminRevert(ctx, actor, id, request.Status, request.Reason)
}

func (c *ScheduleController) AcknowledgeImportantInfo(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
) (*models.Schedule, error) {
	schedule, _, err := c.acks.Acknowledge(ctx, services.AckKindInfo, actor, id, time.Time{})
	return schedule, err
}

func (c *ScheduleController) AcknowledgeNotes(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
) (*models.Schedule, error) {
	schedule, _, err := c.acks.Acknowledge(ctx, services.AckKindNotes, actor, id, time.Time{})
	return schedule, err
}

func (c *ScheduleController) UpdateNotes(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
	request *UpdateNotesRequest,
) (*models.Schedule, error) {
	if request == nil {
		return nil, fmt.Errorf("%w: notes are required", ErrValidation)
	}
	if len(request.Notes) > MaxNotesLength {
		return nil, fmt.Errorf("%w: notes exceed %d characters", ErrValidation, MaxNotesLength)
	}

	return c.acks.UpdateNotes(ctx, actor, id, request.Notes)
}

func (c *ScheduleController) ScheduleAlerts(
	ctx context.Context,
	id uuid.UUID,
) (services.ScheduleAlerts, error) {
	return c.alerts.ScheduleAlerts(ctx, id)
}

func (c *ScheduleController) CleaningAlerts(ctx context.Context) (services.CleaningAlertsSnapshot, error) {
	return c.alerts.CachedCleaningAlerts(ctx)
}

func (c *ScheduleController) GetDraft(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
) (*services.CleaningCacheData, error) {
	schedule, err := c.scheduleRepo.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.drafts.Load(ctx, schedule, actor.ID)
}

func (c *ScheduleController) DraftExists(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
) (bool, error) {
	schedule, err := c.scheduleRepo.GetSchedule(ctx, id)
	if err != nil {
		return false, err
	}
	return c.drafts.Exists(ctx, schedule, actor.ID)
}

func (c *ScheduleController) SaveDraft(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
	patch *services.CleaningCachePatch,
) (*services.CleaningCacheData, error) {
	if patch == nil {
		return nil, fmt.Errorf("%w: draft body is required", ErrValidation)
	}
	if patch.ObservationsText != nil && len(*patch.ObservationsText) > MaxObservationsLength {
		return nil, fmt.Errorf("%w: observations exceed %d characters", ErrValidation, MaxObservationsLength)
	}

	schedule, err := c.scheduleRepo.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.drafts.Save(ctx, schedule, actor.ID, *patch)
}

func (c *ScheduleController) ClearDraft(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	return c.drafts.Clear(ctx, id, actor.ID)
}
