package handlers

import (
	"errors"

	"turnover/internal/app"
	schedulesController "turnover/internal/controllers/schedules"
	"turnover/internal/handlers/middleware"
	"turnover/internal/models"
	"turnover/internal/repositories"
	"turnover/internal/services"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ScheduleHandler struct {
	Handler
	scheduleController schedulesController.ScheduleControllerInterface
}

func NewScheduleHandler(app app.App, router fiber.Router) *ScheduleHandler {
	log := logger.New("handlers").File("schedule_handler")
	return &ScheduleHandler{
		scheduleController: app.Controllers.Schedules,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *ScheduleHandler) Register() {
	protected := h.middleware.RequireAuth()

	alerts := h.router.Group("/alerts", protected)
	alerts.Get("/cleaning", h.cleaningAlerts)

	schedules := h.router.Group("/schedules", protected)
	schedules.Get("/:id", h.getSchedule)
	schedules.Get("/:id/alerts", h.scheduleAlerts)
	schedules.Post("/:id/release", h.release)
	schedules.Get("/:id/claim-check", h.claimCheck)
	schedules.Post("/:id/start", h.startCleaning)
	schedules.Post("/:id/complete", h.completeCleaning)
	schedules.Post("/:id/revert", h.middleware.RequireAdmin(), h.adminRevert)
	schedules.Put(
		"/:id/notes",
		h.middleware.RequireRole(models.RoleAdmin, models.RoleManager),
		h.updateNotes,
	)
	schedules.Post("/:id/ack/info", h.acknowledgeImportantInfo)
	schedules.Post("/:id/ack/notes", h.acknowledgeNotes)

	drafts := schedules.Group("/:id/draft")
	drafts.Get("", h.getDraft)
	drafts.Get("/exists", h.draftExists)
	drafts.Put("", h.saveDraft)
	drafts.Delete("", h.clearDraft)
}

// statusFor maps domain errors onto HTTP statuses. Anything unknown is a 500
// and its message is not echoed back.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return fiber.StatusForbidden
	case errors.Is(err, repositories.ErrScheduleNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrAlreadyStarted),
		errors.Is(err, repositories.ErrPreconditionFailed),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrDraftInactive):
		return fiber.StatusConflict
	case errors.Is(err, schedulesController.ErrValidation),
		errors.Is(err, services.ErrReasonRequired):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *ScheduleHandler) fail(c *fiber.Ctx, err error, fallback string) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		h.log.TraceFromContext(c.UserContext()).
			Function("fail").
			Er(fallback, err, "path", c.Path())
		return c.Status(status).JSON(fiber.Map{"error": fallback})
	}

	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// actorAndID resolves the acting team member and the :id parameter, writing
// the error response itself when either is missing.
func (h *ScheduleHandler) actorAndID(c *fiber.Ctx) (models.Actor, uuid.UUID, bool, error) {
	member := middleware.GetTeamMember(c)
	if member == nil {
		return models.Actor{}, uuid.Nil, false, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return models.Actor{}, uuid.Nil, false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid schedule ID",
		})
	}

	return member.Actor(), id, true, nil
}

func (h *ScheduleHandler) getSchedule(c *fiber.Ctx) error {
	_, id, ok, err := h.actorAndID(c)
	if !ok {
		return err
	}

	schedule, err := h.scheduleController.GetSchedule(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err, "Failed to get schedule")
	}

	return c.JSON(fiber.Map{"schedule": schedule})
}

func (h *ScheduleHandler) scheduleAlerts(c *fiber.Ctx) error {
	_, id, ok, err := h.actorAndID(c)
	if !ok {
		return err
	}

	alerts, err := h.scheduleController.ScheduleAlerts(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err, "Failed to evaluate alerts")
	}

	return c.JSON(fiber.Map{"alerts": alerts})
}

func (h *ScheduleHandler) cleaningAlerts(c *fiber.Ctx) error {
	snapshot, err := h.scheduleController.CleaningAlerts(c.UserContext())
	if err != nil {
		return h.fail(c, err, "Failed to evaluate cleaning alerts")
	}

	return c.JSON(snapshot)
}

func (h *ScheduleHandler) release(c *fiber.Ctx) error {
	actor, id, ok, err := h.actorAndID(c)
	if !ok {
		return err
	}

	schedule, err := h.scheduleController.Release(c.UserContext(), actor, id)
	if err != nil {
		return h.fail(c, err, "Failed to release schedule")
	}

	return c.JSON(fiber.Map{"schedule": schedule})
}

func (h *ScheduleHandler) claimCheck(c *fiber.Ctx) error {
	actor, id, ok, err := h.actorAndID(c)
	if !ok {
		return err
	}

	check, err := h.scheduleController.CheckConcurrency(c.UserContext(), actor, id)
	if err != nil {
		return h.fail(c, err, "Failed to check schedule")
	}

	return c.JSON(check)
}

func (h *ScheduleHandler) startCleaning(c *fiber.Ctx) error {
	actor, id, ok, err := h.actorAndID(c)
	if !ok {
		return err
	}

	schedule, err := h.scheduleController.StartCleaning(c.UserContext(), actor, id)
	if err != nil {
		return h.fail(c, err, "Failed to start cleaning")
	}

	return c.JSON(fiber.Map{"schedule": schedule})
}

func (h *ScheduleHandler) completeCleaning(c *fiber.Ctx) error {
	actor, id, ok, err := h.actorAndID(c)
	if !ok {
		return err
	}

	var req schedulesController.CompleteCleaningRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	response, err := h.scheduleController.CompleteCleaning(c.UserContext(), actor, id, &req)
	if err != nil {
		return h.fail(c, err, "Failed to complete cleaning")
	}

	return c.JSON(response)
}

func (h *ScheduleHandler) adminRevert(c *fiber.Ctx) error {
	actor, id, ok, err := h.actorAndID(c)
	if !ok {
		return err
	}

	var req schedulesController.RevertRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	schedule, err := h.scheduleController.AdminRevert(c.UserContext(), actor, id, &req)
	if err != nil {
		return h.fail(c, err, "Failed to revert schedule")
	}

	return c.JSON(fiber.Map{"schedule": schedule})
}

func (h *ScheduleHandler) updateNotes(c *fiber.Ctx) error {
	actor, id, ok, err := h.actorAndID(c)
	if !ok {
		return err
	}

	var req schedulesController.UpdateNotesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	schedule, err := h.scheduleController.UpdateNotes(c.UserContext(), actor, id, &req)
	if err != nil {
		return h.fail(c, err, "Failed to update notes")
	}

	return c.JSON(fiber.Map{"schedule": schedule})
}

func (h *ScheduleHandler) acknowledgeImportantInfo(c *fiber.Ctx) error {
	actor, id, ok, err := h.actorAndID(c)
	if !ok {
		return err
	}

	schedule, err := h.scheduleController.AcknowledgeImportantInfo(c.UserContext(), actor, id)
	if err != nil {
		return h.fail(c, err, "Failed to acknowledge important info")
	}

	return c.JSON(fiber.Map{"schedule": schedule})
}

func (h *ScheduleHandler) acknowledgeNotes(c *fiber.Ctx) error {
	actor, id, ok, err := h.actorAndID(c)
	if !ok {
		return err
	}

	schedule, err := h.scheduleController.AcknowledgeNotes(c.UserContext(), actor, id)
	if err != nil {
		return h.fail(c, err, "Failed to acknowledge notes")
	}

	return c.JSON(fiber.Map{"schedule": schedule})
}

func (h *ScheduleHandler) getDraft(c *fiber.Ctx) error {
	actor, id, ok, err := h.actorAndID(c)
	if !ok {
		return err
	}

	draft, err := h.scheduleController.GetDraft(c.UserContext(), actor, id)
	if err != nil {
		return h.fail(c, err, "Failed to load draft")
	}

	return c.JSON(fiber.Map{"draft": draft})
}

func (h *ScheduleHandler) draftExists(c *fiber.Ctx) error {
	actor, id, ok, err := h.actorAndID(c)
	if !ok {
		return err
	}

	exists, err := h.scheduleController.DraftExists(c.UserContext(), actor, id)
	if err != nil {
		return h.fail(c, err, "Failed to check draft")
	}

	return c.JSON(fiber.Map{"exists": exists})
}

func (h *ScheduleHandler) saveDraft(c *fiber.Ctx) error {
	actor, id, ok, err := h.actorAndID(c)
	if !ok {
		return err
	}

	var patch services.CleaningCachePatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	draft, err := h.scheduleController.SaveDraft(c.UserContext(), actor, id, &patch)
	if err != nil {
		return h.fail(c, err, "Failed to save draft")
	}

	return c.JSON(fiber.Map{"draft": draft})
}

func (h *ScheduleHandler) clearDraft(c *fiber.Ctx) error {
	actor, id, ok, err := h.actorAndID(c)
	if !ok {
		return err
	}

	if err := h.scheduleController.ClearDraft(c.UserContext(), actor, id); err != nil {
		return h.fail(c, err, "Failed to clear draft")
	}

	return c.Status(fiber.StatusNoContent).Send(nil)
}
