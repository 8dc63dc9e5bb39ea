package handler

import (
	"net/http"
	"strconv"
	"strings"
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

// OrganizationHandler serves organization, membership and domain binding
// management.
type OrganizationHandler struct {
	db       *gorm.DB
	resolver *tenancy.Resolver
}

// NewOrganizationHandler creates the handler with its dependencies.
func NewOrganizationHandler(db *gorm.DB, resolver *tenancy.Resolver) *OrganizationHandler {
	return &OrganizationHandler{db: db, resolver: resolver}
}

// Create registers a new organization. The route is served outside tenant
// enforcement (there is no tenant yet) but still requires a verified
// subject, who becomes the first admin member.
func (h *OrganizationHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)

	rc, _ := tenancy.FromContext(c)
	if !rc.Authenticated() {
		prometheus.RecordAuthError("missing_token")
		return response.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	userID := *rc.UserID

	var req struct {
		Name string `json:"name"`
		Slug string `json:"slug,omitempty"`
	}
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return response.Fail(c, http.StatusBadRequest, "name is required")
	}
	if req.Slug == "" {
		req.Slug = strings.ToLower(strings.ReplaceAll(req.Name, " ", "-"))
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	org := model.Organization{Name: req.Name, Slug: req.Slug, Active: true}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if result := tx.Create(&org); result.Error != nil {
			return result.Error
		}
		membership := model.Membership{
			UserID:         userID,
			OrganizationID: org.ID,
			Role:           model.RoleAdmin,
			Active:         true,
		}
		return tx.Create(&membership).Error
	})
	if err != nil {
		log.Error("Failed to create organization", zap.Error(err))
		return response.Fail(c, http.StatusInternalServerError, "organization creation failed")
	}

	h.refreshActiveOrganizations(c)

	log.Info("Organization created",
		zap.Uint("id", org.ID),
		zap.String("name", org.Name),
		zap.Uint("owner_id", userID))
	return response.OK(c, http.StatusCreated, org)
}

// refreshActiveOrganizations recomputes the active-organizations gauge. A
// failed count only loses one gauge refresh, never the request.
func (h *OrganizationHandler) refreshActiveOrganizations(c echo.Context) {
	var count int64
	if err := h.db.Model(&model.Organization{}).Where("active = ?", true).Count(&count).Error; err != nil {
		logger.FromContext(c).Warn("Failed to refresh active organizations gauge", zap.Error(err))
		return
	}
	prometheus.UpdateActiveOrganizations(int(count))
}

// ListMine returns the memberships of the authenticated user across all
// organizations. Served outside tenant enforcement so a user can pick an
// organization before having one resolved.
func (h *OrganizationHandler) ListMine(c echo.Context) error {
	log := logger.FromContext(c)

	rc, _ := tenancy.FromContext(c)
	if !rc.Authenticated() {
		prometheus.RecordAuthError("missing_token")
		return response.Fail(c, http.StatusUnauthorized, "authentication required")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var memberships []model.Membership
	if err := h.db.
		Preload("Organization").
		Where("user_id = ? AND active = ?", *rc.UserID, true).
		Find(&memberships).Error; err != nil {
		log.Error("Failed to list memberships", zap.Error(err))
		return response.Fail(c, http.StatusInternalServerError, "lookup failed")
	}

	return response.OK(c, http.StatusOK, memberships)
}

// Get returns the resolved organization. Any member may call it.
func (h *OrganizationHandler) Get(c echo.Context) error {
	log := logger.FromContext(c)
	rc, _ := tenancy.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var org model.Organization
	if result := h.db.First(&org, rc.OrganizationID); result.Error != nil {
		log.Error("Organization not found", zap.Uint("id", rc.OrganizationID), zap.Error(result.Error))
		return response.Fail(c, http.StatusNotFound, "organization not found")
	}
	return response.OK(c, http.StatusOK, org)
}

// AddMember attaches a user to the resolved organization with a role.
// Admin-gated by route middleware.
func (h *OrganizationHandler) AddMember(c echo.Context) error {
	log := logger.FromContext(c)
	rc, _ := tenancy.FromContext(c)

	var req struct {
		UserID uint   `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == 0 {
		return response.Fail(c, http.StatusBadRequest, "user_id is required")
	}
	switch req.Role {
	case model.RoleParent, model.RoleStaff, model.RoleAdmin:
	case "":
		req.Role = model.RoleParent
	default:
		return response.Fail(c, http.StatusBadRequest, "unknown role")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	var user model.User
	if result := h.db.First(&user, req.UserID); result.Error != nil {
		return response.Fail(c, http.StatusNotFound, "user not found")
	}

	var existing model.Membership
	result := h.db.
		Where("user_id = ? AND organization_id = ?", req.UserID, rc.OrganizationID).
		First(&existing)
	if result.Error == nil {
		// Membership exists, update role and reactivate.
		if err := h.db.Model(&existing).Updates(map[string]interface{}{
			"role":   req.Role,
			"active": true,
		}).Error; err != nil {
			log.Error("Failed to update membership", zap.Error(err))
			return response.Fail(c, http.StatusInternalServerError, "membership update failed")
		}
		existing.Role = req.Role
		existing.Active = true
		return response.OK(c, http.StatusOK, existing)
	}

	membership := model.Membership{
		UserID:         req.UserID,
		OrganizationID: rc.OrganizationID,
		Role:           req.Role,
		Active:         true,
	}
	if result := h.db.Create(&membership); result.Error != nil {
		log.Error("Failed to create membership", zap.Error(result.Error))
		return response.Fail(c, http.StatusInternalServerError, "membership creation failed")
	}

	log.Info("Member added",
		zap.Uint("user_id", req.UserID),
		zap.Uint("organization_id", rc.OrganizationID),
		zap.String("role", req.Role))
	return response.OK(c, http.StatusCreated, membership)
}

// RemoveMember deactivates a membership in the resolved organization.
// Admin-gated by route middleware.
func (h *OrganizationHandler) RemoveMember(c echo.Context) error {
	log := logger.FromContext(c)
	rc, _ := tenancy.FromContext(c)

	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 32)
	if err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid user id")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	result := h.db.Model(&model.Membership{}).
		Where("user_id = ? AND organization_id = ? AND active = ?", uint(userID), rc.OrganizationID, true).
		Update("active", false)
	if result.Error != nil {
		log.Error("Failed to remove member", zap.Error(result.Error))
		return response.Fail(c, http.StatusInternalServerError, "member removal failed")
	}
	if result.RowsAffected == 0 {
		return response.Fail(c, http.StatusNotFound, "membership not found")
	}

	log.Info("Member removed",
		zap.Uint64("user_id", userID),
		zap.Uint("organization_id", rc.OrganizationID))
	return response.OK(c, http.StatusOK, echo.Map{"message": "member removed"})
}

// ListDomainBindings returns the hostname patterns bound to the resolved
// organization. Admin-gated by route middleware.
func (h *OrganizationHandler) ListDomainBindings(c echo.Context) error {
	log := logger.FromContext(c)
	rc, _ := tenancy.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var bindings []model.DomainBinding
	if err := h.db.Where("organization_id = ?", rc.OrganizationID).Find(&bindings).Error; err != nil {
		log.Error("Failed to list domain bindings", zap.Error(err))
		return response.Fail(c, http.StatusInternalServerError, "lookup failed")
	}
	return response.OK(c, http.StatusOK, bindings)
}

// CreateDomainBinding binds a hostname pattern to the resolved organization.
// Admin-gated by route middleware.
func (h *OrganizationHandler) CreateDomainBinding(c echo.Context) error {
	log := logger.FromContext(c)
	rc, _ := tenancy.FromContext(c)

	var req struct {
		Pattern string `json:"pattern"`
	}
	if err := c.Bind(&req); err != nil || req.Pattern == "" {
		return response.Fail(c, http.StatusBadRequest, "pattern is required")
	}
	pattern := strings.ToLower(strings.TrimSpace(req.Pattern))
	if strings.Count(pattern, "*") > 1 || (strings.Contains(pattern, "*") && !strings.HasPrefix(pattern, "*.")) {
		return response.Fail(c, http.StatusBadRequest, "wildcard must be a single leading label")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	binding := model.DomainBinding{
		Pattern:        pattern,
		OrganizationID: rc.OrganizationID,
		Active:         true,
	}
	if result := h.db.Create(&binding); result.Error != nil {
		log.Error("Failed to create domain binding", zap.String("pattern", pattern), zap.Error(result.Error))
		return response.Fail(c, http.StatusConflict, "pattern already bound")
	}

	log.Info("Domain binding created",
		zap.String("pattern", pattern),
		zap.Uint("organization_id", rc.OrganizationID))
	return response.OK(c, http.StatusCreated, binding)
}

// DeleteDomainBinding removes a binding owned by the resolved organization.
// Admin-gated by route middleware.
func (h *OrganizationHandler) DeleteDomainBinding(c echo.Context) error {
	log := logger.FromContext(c)
	rc, _ := tenancy.FromContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid binding id")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	result := h.db.
		Where("id = ? AND organization_id = ?", uint(id), rc.OrganizationID).
		Delete(&model.DomainBinding{})
	if result.Error != nil {
		log.Error("Failed to delete domain binding", zap.Error(result.Error))
		return response.Fail(c, http.StatusInternalServerError, "deletion failed")
	}
	if result.RowsAffected == 0 {
		return response.Fail(c, http.StatusNotFound, "binding not found")
	}
	return response.OK(c, http.StatusOK, echo.Map{"message": "binding removed"})
}

// DomainLookup is a public probe answering "which organization does this
// hostname belong to". It reads the resolution the binder already cached.
func (h *OrganizationHandler) DomainLookup(c echo.Context) error {
	res := h.resolver.Resolve(c, nil)
	if res.OrganizationID == 0 {
		return response.Fail(c, http.StatusNotFound, "no organization bound to this host")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var org model.Organization
	if result := h.db.Select("id", "name", "slug").First(&org, res.OrganizationID); result.Error != nil {
		return response.Fail(c, http.StatusNotFound, "no organization bound to this host")
	}
	return response.OK(c, http.StatusOK, echo.Map{
		"organization": org,
		"source":       res.Source,
	})
}
