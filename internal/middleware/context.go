package middleware

import (
	"errors"
	"net/http"
	"strings"

	"scouthub/internal/response"
	"scouthub/internal/tenancy"
	"scouthub/pkg/jwtutil"
	"scouthub/pkg/logger"
	"scouthub/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ContextBinder runs credential verification, tenant resolution and the
// membership role lookup in order, then binds the immutable request context
// for downstream handlers. It is the single source of truth for which routes
// are public; a protected route short-circuits with the response envelope
// before any handler runs.
type ContextBinder struct {
	tokens      *jwtutil.Service
	resolver    *tenancy.Resolver
	memberships *tenancy.MembershipStore
	public      map[string]bool
}

// NewContextBinder creates the binder. publicRoutes are registered route
// paths (as echo reports them, e.g. "/auth/login" or "/participants/:id")
// that may be served without a credential or a resolved organization.
func NewContextBinder(tokens *jwtutil.Service, resolver *tenancy.Resolver, memberships *tenancy.MembershipStore, publicRoutes []string) *ContextBinder {
	public := make(map[string]bool, len(publicRoutes))
	for _, route := range publicRoutes {
		public[route] = true
	}
	return &ContextBinder{
		tokens:      tokens,
		resolver:    resolver,
		memberships: memberships,
		public:      public,
	}
}

// Public reports whether the route path is on the allow-list.
func (b *ContextBinder) Public(routePath string) bool {
	return b.public[routePath]
}

// Middleware is the echo middleware running the binding pipeline.
func (b *ContextBinder) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)
		public := b.Public(c.Path())

		var claims *jwtutil.UserClaims
		rawToken, hasToken := extractToken(c)
		if hasToken {
			verified, err := b.tokens.Verify(rawToken)
			switch {
			case err == nil:
				claims = verified
			case public:
				// A stale token on a login or reset page must not block the
				// request; proceed anonymously.
				log.Debug("ignoring invalid credential on public route", zap.Error(err))
			case errors.Is(err, jwtutil.ErrTokenExpired):
				log.Warn("expired token", zap.String("path", c.Request().URL.Path))
				prometheus.RecordAuthError("token_expired")
				return reject(c, tenancy.ErrCredentialExpired)
			default:
				log.Warn("invalid token", zap.String("path", c.Request().URL.Path))
				prometheus.RecordAuthError("invalid_token")
				return reject(c, tenancy.ErrCredentialInvalid)
			}
		}

		res := b.resolver.Resolve(c, claims)
		if res.SpoofAttempt {
			// Already logged and counted as a security event by the resolver.
			return reject(c, tenancy.ErrTenantSpoofAttempt)
		}

		if public {
			// Best-effort binding: public tenant-scoped reads still want the
			// hostname-resolved organization, and a valid credential on a
			// public route keeps its identity.
			rc := &tenancy.RequestContext{OrganizationID: res.OrganizationID}
			if claims != nil {
				userID := claims.UserID
				rc.UserID = &userID
			}
			tenancy.Bind(c, rc)
			return next(c)
		}

		// The credential is checked before the tenant outcome: an anonymous
		// caller gets a 401 even when the tenant could not be resolved either.
		if claims == nil {
			prometheus.RecordAuthError("missing_token")
			return reject(c, tenancy.ErrCredentialMissing)
		}

		if res.OrganizationID == 0 {
			log.Warn("unresolved organization on protected route", zap.String("host", c.Request().Host))
			return reject(c, tenancy.ErrTenantUnresolved)
		}

		role, err := b.roleFor(claims, res.OrganizationID)
		if err != nil {
			// The subject stays bound without a role; role-gated operations
			// will deny on their own.
			log.Error("membership lookup failed",
				zap.Uint("user_id", claims.UserID),
				zap.Uint("organization_id", res.OrganizationID),
				zap.Error(err))
			role = ""
		}

		userID := claims.UserID
		tenancy.Bind(c, &tenancy.RequestContext{
			OrganizationID: res.OrganizationID,
			UserID:         &userID,
			Role:           role,
		})

		log.Debug("request context bound",
			zap.Uint("organization_id", res.OrganizationID),
			zap.Uint("user_id", userID),
			zap.String("role", role),
			zap.String("source", res.Source))

		return next(c)
	}
}

// reject terminates the request with the envelope and status for the given
// rejection cause.
func reject(c echo.Context, cause error) error {
	var status int
	var message, reason string
	switch {
	case errors.Is(cause, tenancy.ErrCredentialMissing):
		status, message, reason = http.StatusUnauthorized, "authentication required", "credential_missing"
	case errors.Is(cause, tenancy.ErrCredentialInvalid):
		status, message, reason = http.StatusUnauthorized, "invalid token", "credential_invalid"
	case errors.Is(cause, tenancy.ErrCredentialExpired):
		status, message, reason = http.StatusUnauthorized, "token expired", "credential_expired"
	case errors.Is(cause, tenancy.ErrTenantUnresolved):
		status, message, reason = http.StatusBadRequest, "organization could not be determined", "tenant_unresolved"
	case errors.Is(cause, tenancy.ErrTenantSpoofAttempt):
		status, message, reason = http.StatusForbidden, "organization mismatch", "tenant_spoof"
	default:
		status, message, reason = http.StatusForbidden, "access denied", "access_denied"
	}
	prometheus.RecordRejection(reason)
	return response.Fail(c, status, message)
}

// roleFor returns the subject's role within the resolved organization. The
// role claim is reused only when it was issued for that same organization;
// otherwise the membership table is consulted.
func (b *ContextBinder) roleFor(claims *jwtutil.UserClaims, organizationID uint) (string, error) {
	if claims.OrganizationID != nil && *claims.OrganizationID == organizationID && claims.Role != "" {
		return claims.Role, nil
	}
	return b.memberships.RoleIn(claims.UserID, organizationID)
}

// extractToken pulls the bearer token from the Authorization header, falling
// back to the "token" query parameter used by the email flows.
func extractToken(c echo.Context) (string, bool) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			return parts[1], true
		}
		// A malformed header is a present-but-invalid credential, not an
		// absent one; verification will reject it.
		return authHeader, true
	}
	if token := c.QueryParam("token"); token != "" {
		return token, true
	}
	return "", false
}
