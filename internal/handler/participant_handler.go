package handler

import (
	"net/http"
	"strconv"
	"time"

	"scouthub/internal/model"
	"scouthub/internal/response"
	"scouthub/internal/tenancy"
	"scouthub/pkg/logger"
	"scouthub/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// staffRoles guard the participant operations that run on the role channel
// alone.
var staffRoles = []string{model.RoleStaff, model.RoleAdmin}

// ParticipantHandler serves participant records and guardian links.
// Reads and updates of a single participant run on two channels: the
// staff/admin role, or a guardian link between the caller and the record.
type ParticipantHandler struct {
	db *gorm.DB
}

// NewParticipantHandler creates the handler with its dependencies.
func NewParticipantHandler(db *gorm.DB) *ParticipantHandler {
	return &ParticipantHandler{db: db}
}

// List returns the participants of the resolved organization. Staff-gated by
// route middleware.
func (h *ParticipantHandler) List(c echo.Context) error {
	log := logger.FromContext(c)
	rc, _ := tenancy.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var participants []model.Participant
	if err := h.db.Where("organization_id = ?", rc.OrganizationID).Find(&participants).Error; err != nil {
		log.Error("Failed to list participants", zap.Error(err))
		return response.Fail(c, http.StatusInternalServerError, "lookup failed")
	}
	return response.OK(c, http.StatusOK, participants)
}

// Create adds a participant to the resolved organization. Staff-gated by
// route middleware.
func (h *ParticipantHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	rc, _ := tenancy.FromContext(c)

	var req struct {
		FirstName string     `json:"first_name"`
		LastName  string     `json:"last_name"`
		Nickname  string     `json:"nickname,omitempty"`
		BirthDate *time.Time `json:"birth_date,omitempty"`
		GroupName string     `json:"group_name,omitempty"`
	}
	if err := c.Bind(&req); err != nil || req.FirstName == "" || req.LastName == "" {
		return response.Fail(c, http.StatusBadRequest, "first_name and last_name are required")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	participant := model.Participant{
		OrganizationID: rc.OrganizationID,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Nickname:       req.Nickname,
		BirthDate:      req.BirthDate,
		GroupName:      req.GroupName,
	}
	if result := h.db.Create(&participant); result.Error != nil {
		log.Error("Failed to create participant", zap.Error(result.Error))
		return response.Fail(c, http.StatusInternalServerError, "participant creation failed")
	}

	log.Info("Participant created",
		zap.Uint("id", participant.ID),
		zap.Uint("organization_id", rc.OrganizationID))
	return response.OK(c, http.StatusCreated, participant)
}

// Get returns one participant. Granted to staff/admin by role, or to a
// guardian linked to the record.
func (h *ParticipantHandler) Get(c echo.Context) error {
	rc, _ := tenancy.FromContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid participant id")
	}

	decision := tenancy.Authorize(rc, staffRoles, h.guardianCheck(c, uint(id)))
	if !decision.Allowed {
		return h.deny(c, decision)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var participant model.Participant
	result := h.db.Where("id = ? AND organization_id = ?", uint(id), rc.OrganizationID).First(&participant)
	if result.Error != nil {
		return response.Fail(c, http.StatusNotFound, "participant not found")
	}
	return response.OK(c, http.StatusOK, participant)
}

// Update modifies a participant. Same dual-channel access as Get.
func (h *ParticipantHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	rc, _ := tenancy.FromContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid participant id")
	}

	decision := tenancy.Authorize(rc, staffRoles, h.guardianCheck(c, uint(id)))
	if !decision.Allowed {
		return h.deny(c, decision)
	}

	var req struct {
		FirstName *string    `json:"first_name,omitempty"`
		LastName  *string    `json:"last_name,omitempty"`
		Nickname  *string    `json:"nickname,omitempty"`
		BirthDate *time.Time `json:"birth_date,omitempty"`
		GroupName *string    `json:"group_name,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid request")
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Nickname != nil {
		updates["nickname"] = *req.Nickname
	}
	if req.BirthDate != nil {
		updates["birth_date"] = *req.BirthDate
	}
	if req.GroupName != nil {
		updates["group_name"] = *req.GroupName
	}
	if len(updates) == 0 {
		return response.Fail(c, http.StatusBadRequest, "nothing to update")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	result := h.db.Model(&model.Participant{}).
		Where("id = ? AND organization_id = ?", uint(id), rc.OrganizationID).
		Updates(updates)
	if result.Error != nil {
		log.Error("Failed to update participant", zap.Uint64("id", id), zap.Error(result.Error))
		return response.Fail(c, http.StatusInternalServerError, "participant update failed")
	}
	if result.RowsAffected == 0 {
		return response.Fail(c, http.StatusNotFound, "participant not found")
	}

	log.Info("Participant updated", zap.Uint64("id", id))
	return response.OK(c, http.StatusOK, echo.Map{"message": "participant updated"})
}

// Delete removes a participant. Staff-gated by route middleware; guardians
// cannot delete.
func (h *ParticipantHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	rc, _ := tenancy.FromContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid participant id")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	result := h.db.
		Where("id = ? AND organization_id = ?", uint(id), rc.OrganizationID).
		Delete(&model.Participant{})
	if result.Error != nil {
		log.Error("Failed to delete participant", zap.Uint64("id", id), zap.Error(result.Error))
		return response.Fail(c, http.StatusInternalServerError, "participant deletion failed")
	}
	if result.RowsAffected == 0 {
		return response.Fail(c, http.StatusNotFound, "participant not found")
	}

	log.Info("Participant deleted", zap.Uint64("id", id))
	return response.OK(c, http.StatusOK, echo.Map{"message": "participant deleted"})
}

// AddGuardian links a user to a participant of the resolved organization.
// Staff-gated by route middleware.
func (h *ParticipantHandler) AddGuardian(c echo.Context) error {
	log := logger.FromContext(c)
	rc, _ := tenancy.FromContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid participant id")
	}

	var req struct {
		UserID   uint   `json:"user_id"`
		Relation string `json:"relation,omitempty"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == 0 {
		return response.Fail(c, http.StatusBadRequest, "user_id is required")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	var participant model.Participant
	result := h.db.Where("id = ? AND organization_id = ?", uint(id), rc.OrganizationID).First(&participant)
	if result.Error != nil {
		return response.Fail(c, http.StatusNotFound, "participant not found")
	}

	// The guardian must belong to the same organization as the participant;
	// a link must never point at a subject from another tenant.
	var members int64
	err = h.db.Model(&model.Membership{}).
		Where("user_id = ? AND organization_id = ? AND active = ?", req.UserID, rc.OrganizationID, true).
		Count(&members).Error
	if err != nil {
		log.Error("Membership lookup failed", zap.Uint("user_id", req.UserID), zap.Error(err))
		return response.Fail(c, http.StatusInternalServerError, "guardian link creation failed")
	}
	if members == 0 {
		return response.Fail(c, http.StatusBadRequest, "user is not a member of this organization")
	}

	link := model.GuardianLink{
		UserID:        req.UserID,
		ParticipantID: participant.ID,
		Relation:      req.Relation,
		Active:        true,
	}
	if result := h.db.Create(&link); result.Error != nil {
		log.Error("Failed to create guardian link", zap.Error(result.Error))
		return response.Fail(c, http.StatusInternalServerError, "guardian link creation failed")
	}

	log.Info("Guardian link created",
		zap.Uint("user_id", req.UserID),
		zap.Uint("participant_id", participant.ID))
	return response.OK(c, http.StatusCreated, link)
}

// guardianCheck builds the ownership check for one participant: does the
// subject hold an active guardian link to it. Lookup failures are logged and
// count as a failed check.
func (h *ParticipantHandler) guardianCheck(c echo.Context, participantID uint) tenancy.OwnershipCheck {
	return func(userID uint) bool {
		defer prometheus.TrackDBOperation("query")(time.Now())
		var count int64
		err := h.db.Model(&model.GuardianLink{}).
			Where("user_id = ? AND participant_id = ? AND active = ?", userID, participantID, true).
			Count(&count).Error
		if err != nil {
			logger.FromContext(c).Error("Guardian link lookup failed",
				zap.Uint("user_id", userID),
				zap.Uint("participant_id", participantID),
				zap.Error(err))
			return false
		}
		return count > 0
	}
}

// deny maps an authorization decision to the response envelope.
func (h *ParticipantHandler) deny(c echo.Context, decision tenancy.Decision) error {
	logger.FromContext(c).Warn("access denied",
		zap.String("path", c.Request().URL.Path),
		zap.String("reason", string(decision.Reason)))
	prometheus.RecordRejection("access_denied")
	if decision.Reason == tenancy.DenialNoIdentity {
		return response.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	return response.Fail(c, http.StatusForbidden, "access denied")
}
