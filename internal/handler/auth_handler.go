package handler

import (
	"net/http"
	"time"

	"scouthub/internal/model"
	"scouthub/internal/response"
	"scouthub/pkg/config"
	"scouthub/pkg/jwtutil"
	"scouthub/pkg/logger"
	"scouthub/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler serves registration, login and the one-time token flows
// (password reset, email verification).
type AuthHandler struct {
	db        *gorm.DB
	tokens    *jwtutil.Service
	resetTTL  time.Duration
	verifyTTL time.Duration
}

// NewAuthHandler creates the handler with its dependencies.
func NewAuthHandler(db *gorm.DB, tokens *jwtutil.Service, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		db:        db,
		tokens:    tokens,
		resetTTL:  cfg.Token.ResetTTL,
		verifyTTL: cfg.Token.VerifyTTL,
	}
}

// Register creates a new user account and issues an email verification
// token. Email delivery is handled out of band; the token is logged for the
// mailer to pick up, never returned to the caller.
func (h *AuthHandler) Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return response.Fail(c, http.StatusBadRequest, "invalid request")
	}
	if req.Email == "" || req.Password == "" {
		prometheus.RecordAuthError("incomplete_registration")
		return response.Fail(c, http.StatusBadRequest, "email and password are required")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var existing model.User
	if result := h.db.Where("email = ?", req.Email).First(&existing); result.Error == nil {
		log.Warn("User already exists", zap.String("email", req.Email))
		prometheus.RecordAuthError("email_already_exists")
		return response.Fail(c, http.StatusConflict, "email already registered")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return response.Fail(c, http.StatusInternalServerError, "registration failed")
	}

	user := model.User{Email: req.Email, Password: string(hashed)}
	if result := h.db.Create(&user); result.Error != nil {
		log.Error("Failed to create user", zap.Error(result.Error))
		prometheus.RecordAuthError("user_creation_failed")
		return response.Fail(c, http.StatusInternalServerError, "registration failed")
	}

	verify := model.OneTimeToken{
		UserID:    user.ID,
		Purpose:   model.PurposeEmailVerify,
		ExpiresAt: time.Now().Add(h.verifyTTL),
	}
	if result := h.db.Create(&verify); result.Error != nil {
		log.Error("Failed to create verification token", zap.Error(result.Error))
	} else {
		log.Info("Email verification token issued",
			zap.Uint("user_id", user.ID),
			zap.String("token_id", verify.ID))
	}

	log.Info("User registered", zap.String("email", user.Email))
	return response.OK(c, http.StatusCreated, echo.Map{
		"user": echo.Map{
			"id":    user.ID,
			"email": user.Email,
		},
	})
}

// Login verifies the credentials and returns a bearer token. When an
// organization id is supplied the membership is checked and the token is
// issued for that organization with the role held there; otherwise the token
// carries identity only and the tenant is resolved per request.
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email          string `json:"email"`
		Password       string `json:"password"`
		OrganizationID *uint  `json:"organization_id,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return response.Fail(c, http.StatusBadRequest, "invalid request")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	if result := h.db.Where("email = ?", req.Email).First(&user); result.Error != nil {
		log.Warn("User not found", zap.String("email", req.Email))
		prometheus.RecordAuthError("user_not_found")
		return response.Fail(c, http.StatusUnauthorized, "invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return response.Fail(c, http.StatusUnauthorized, "invalid credentials")
	}

	var token string
	var err error
	var role string

	if req.OrganizationID != nil {
		var membership model.Membership
		result := h.db.
			Where("user_id = ? AND organization_id = ? AND active = ?", user.ID, *req.OrganizationID, true).
			First(&membership)
		if result.Error != nil {
			log.Warn("User has no membership in requested organization",
				zap.String("email", req.Email),
				zap.Uint("organization_id", *req.OrganizationID))
			prometheus.RecordAuthError("organization_access_denied")
			return response.Fail(c, http.StatusForbidden, "access denied to the requested organization")
		}
		role = membership.Role
		token, err = h.tokens.GenerateWithOrganization(user.Email, user.ID, req.OrganizationID, role)
	} else {
		token, err = h.tokens.Generate(user.Email, user.ID)
	}
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return response.Fail(c, http.StatusInternalServerError, "token error")
	}

	log.Info("User logged in",
		zap.String("email", user.Email),
		zap.Uintp("organization_id", req.OrganizationID),
		zap.String("role", role))

	data := echo.Map{
		"token": token,
		"user": echo.Map{
			"id":    user.ID,
			"email": user.Email,
		},
	}
	if req.OrganizationID != nil {
		data["organization"] = echo.Map{
			"id":   *req.OrganizationID,
			"role": role,
		}
	}
	return response.OK(c, http.StatusOK, data)
}

// RequestPasswordReset issues a single-use reset token for the account. The
// response is identical whether or not the address exists.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" {
		prometheus.RecordAuthError("invalid_request")
		return response.Fail(c, http.StatusBadRequest, "email is required")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	if result := h.db.Where("email = ?", req.Email).First(&user); result.Error == nil {
		reset := model.OneTimeToken{
			UserID:    user.ID,
			Purpose:   model.PurposePasswordReset,
			ExpiresAt: time.Now().Add(h.resetTTL),
		}
		if result := h.db.Create(&reset); result.Error != nil {
			log.Error("Failed to create reset token", zap.Error(result.Error))
			return response.Fail(c, http.StatusInternalServerError, "reset request failed")
		}
		log.Info("Password reset token issued",
			zap.Uint("user_id", user.ID),
			zap.String("token_id", reset.ID))
	} else {
		log.Debug("Password reset requested for unknown email", zap.String("email", req.Email))
	}

	return response.OK(c, http.StatusOK, echo.Map{
		"message": "If the address exists, a reset link has been sent",
	})
}

// ConfirmPasswordReset consumes a reset token and sets the new password. The
// consumption is a conditional update so that two requests presenting the
// same token cannot both succeed.
func (h *AuthHandler) ConfirmPasswordReset(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil || req.Token == "" || req.Password == "" {
		prometheus.RecordAuthError("invalid_request")
		return response.Fail(c, http.StatusBadRequest, "token and password are required")
	}

	userID, ok := h.consumeToken(c, req.Token, model.PurposePasswordReset)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, "invalid or expired reset token")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return response.Fail(c, http.StatusInternalServerError, "password reset failed")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.db.Model(&model.User{}).Where("id = ?", userID).Update("password", string(hashed)).Error; err != nil {
		log.Error("Failed to update password", zap.Uint("user_id", userID), zap.Error(err))
		return response.Fail(c, http.StatusInternalServerError, "password reset failed")
	}

	log.Info("Password reset completed", zap.Uint("user_id", userID))
	return response.OK(c, http.StatusOK, echo.Map{"message": "password updated"})
}

// VerifyEmail consumes an email verification token passed as a query
// parameter and marks the account verified.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	log := logger.FromContext(c)

	token := c.QueryParam("token")
	if token == "" {
		prometheus.RecordAuthError("invalid_request")
		return response.Fail(c, http.StatusBadRequest, "token is required")
	}

	userID, ok := h.consumeToken(c, token, model.PurposeEmailVerify)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, "invalid or expired verification token")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.db.Model(&model.User{}).Where("id = ?", userID).Update("email_verified", true).Error; err != nil {
		log.Error("Failed to mark email verified", zap.Uint("user_id", userID), zap.Error(err))
		return response.Fail(c, http.StatusInternalServerError, "verification failed")
	}

	log.Info("Email verified", zap.Uint("user_id", userID))
	return response.OK(c, http.StatusOK, echo.Map{"message": "email verified"})
}

// consumeToken atomically flips consumed from false to true for an
// unexpired token of the given purpose. Exactly one concurrent caller wins;
// everyone else sees zero rows affected.
func (h *AuthHandler) consumeToken(c echo.Context, token, purpose string) (uint, bool) {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("update")(time.Now())
	result := h.db.Model(&model.OneTimeToken{}).
		Where("token = ? AND purpose = ? AND consumed = ? AND expires_at > ?", token, purpose, false, time.Now()).
		Update("consumed", true)
	if result.Error != nil {
		log.Error("Token consumption failed", zap.Error(result.Error))
		prometheus.RecordAuthError("db_error")
		return 0, false
	}
	if result.RowsAffected == 0 {
		log.Warn("One-time token rejected", zap.String("purpose", purpose))
		prometheus.RecordAuthError("token_consumed_or_expired")
		return 0, false
	}

	var consumed model.OneTimeToken
	if err := h.db.Select("user_id").Where("token = ?", token).First(&consumed).Error; err != nil {
		log.Error("Failed to load consumed token", zap.Error(err))
		return 0, false
	}
	return consumed.UserID, true
}
