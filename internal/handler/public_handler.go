package handler

import (
	"net/http"
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

// PublicHandler serves the anonymous, tenant-scoped reads: organization
// settings and published announcements. Both live on the public allow-list,
// yet still need a tenant resolved from the hostname.
type PublicHandler struct {
	db *gorm.DB
}

// NewPublicHandler creates the handler with its dependencies.
func NewPublicHandler(db *gorm.DB) *PublicHandler {
	return &PublicHandler{db: db}
}

// Settings returns the public settings of the hostname-resolved
// organization.
func (h *PublicHandler) Settings(c echo.Context) error {
	rc, _ := tenancy.FromContext(c)
	if rc == nil || rc.OrganizationID == 0 {
		return response.Fail(c, http.StatusBadRequest, "organization could not be determined")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var org model.Organization
	if result := h.db.Select("id", "name", "slug").First(&org, rc.OrganizationID); result.Error != nil {
		return response.Fail(c, http.StatusNotFound, "organization not found")
	}
	return response.OK(c, http.StatusOK, org)
}

// News returns the published announcements of the hostname-resolved
// organization, newest first.
func (h *PublicHandler) News(c echo.Context) error {
	log := logger.FromContext(c)
	rc, _ := tenancy.FromContext(c)
	if rc == nil || rc.OrganizationID == 0 {
		return response.Fail(c, http.StatusBadRequest, "organization could not be determined")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var announcements []model.Announcement
	err := h.db.
		Where("organization_id = ? AND published = ?", rc.OrganizationID, true).
		Order("published_at DESC").
		Limit(20).
		Find(&announcements).Error
	if err != nil {
		log.Error("Failed to list announcements", zap.Error(err))
		return response.Fail(c, http.StatusInternalServerError, "lookup failed")
	}
	return response.OK(c, http.StatusOK, announcements)
}

// CreateNews publishes an announcement for the resolved organization.
// Staff-gated by route middleware.
func (h *PublicHandler) CreateNews(c echo.Context) error {
	log := logger.FromContext(c)
	rc, _ := tenancy.FromContext(c)

	var req struct {
		Title     string `json:"title"`
		Body      string `json:"body,omitempty"`
		Published bool   `json:"published"`
	}
	if err := c.Bind(&req); err != nil || req.Title == "" {
		return response.Fail(c, http.StatusBadRequest, "title is required")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	announcement := model.Announcement{
		OrganizationID: rc.OrganizationID,
		Title:          req.Title,
		Body:           req.Body,
		Published:      req.Published,
	}
	if req.Published {
		now := time.Now()
		announcement.PublishedAt = &now
	}
	if result := h.db.Create(&announcement); result.Error != nil {
		log.Error("Failed to create announcement", zap.Error(result.Error))
		return response.Fail(c, http.StatusInternalServerError, "announcement creation failed")
	}

	log.Info("Announcement created",
		zap.Uint("id", announcement.ID),
		zap.Uint("organization_id", rc.OrganizationID))
	return response.OK(c, http.StatusCreated, announcement)
}
