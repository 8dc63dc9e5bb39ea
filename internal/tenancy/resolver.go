package tenancy

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"scouthub/internal/model"
	"scouthub/pkg/jwtutil"
	"scouthub/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Resolution sources, in precedence order.
const (
	SourceExplicit = "explicit"
	SourceClaim    = "claim"
	SourceDomain   = "domain"
	SourceNone     = "none"
)

// Header and query parameter carrying an explicit organization id. Only
// trusted when it matches a verified claim; any other occurrence is flagged
// as a spoof attempt.
const (
	OrganizationHeader = "X-Organization-ID"
	OrganizationParam  = "organization_id"
)

// resolutionKey caches the resolution in the echo context so repeated calls
// within one request never query the database twice.
const resolutionKey = "tenant_resolution"

// Resolution is the outcome of tenant resolution for one request.
// OrganizationID is zero when no method succeeded.
type Resolution struct {
	OrganizationID uint
	Source         string
	SpoofAttempt   bool
}

// Resolver determines the active organization for a request. Precedence:
// explicit parameter backed by a matching verified claim, then the claim
// itself, then a hostname lookup against the domain bindings.
type Resolver struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewResolver creates a resolver around the given database handle.
func NewResolver(db *gorm.DB, log *zap.Logger) *Resolver {
	return &Resolver{db: db, log: log}
}

// Resolve returns the organization for the request. The result is cached for
// the lifetime of the request.
func (r *Resolver) Resolve(c echo.Context, claims *jwtutil.UserClaims) Resolution {
	if cached, ok := c.Get(resolutionKey).(Resolution); ok {
		return cached
	}

	res := r.resolve(c, claims)
	c.Set(resolutionKey, res)

	prometheus.RecordTenantResolution(res.Source)
	if res.SpoofAttempt {
		prometheus.SpoofAttemptCounter.Inc()
		r.log.Warn("tenant spoof attempt",
			zap.String("event", "security"),
			zap.Uint("requested_organization", explicitOrganization(c)),
			zap.String("host", c.Request().Host),
			zap.String("ip", c.RealIP()),
			zap.String("path", c.Request().URL.Path))
	}
	return res
}

func (r *Resolver) resolve(c echo.Context, claims *jwtutil.UserClaims) Resolution {
	var claimOrg *uint
	if claims != nil {
		claimOrg = claims.OrganizationID
	}

	spoof := false
	if explicit := explicitOrganization(c); explicit != 0 {
		if claimOrg != nil && *claimOrg == explicit {
			return Resolution{OrganizationID: explicit, Source: SourceExplicit}
		}
		// Parameter without a matching verified claim. The verified claim
		// still wins the resolution; the attempt is flagged for the binder.
		spoof = true
	}

	if claimOrg != nil {
		return Resolution{OrganizationID: *claimOrg, Source: SourceClaim, SpoofAttempt: spoof}
	}

	if host := normalizeHost(c.Request().Host); host != "" {
		orgID, err := r.lookupDomain(host)
		if err != nil {
			// Degrade to unresolved rather than failing the request.
			r.log.Error("domain binding lookup failed", zap.String("host", host), zap.Error(err))
		} else if orgID != 0 {
			return Resolution{OrganizationID: orgID, Source: SourceDomain, SpoofAttempt: spoof}
		}
	}

	return Resolution{Source: SourceNone, SpoofAttempt: spoof}
}

// lookupDomain matches the hostname against stored domain bindings. An exact
// binding always beats a wildcard one; among wildcard matches the longest
// pattern wins, ties broken by lowest id.
func (r *Resolver) lookupDomain(host string) (uint, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var binding model.DomainBinding
	err := r.db.Where("pattern = ? AND active = ?", host, true).First(&binding).Error
	if err == nil {
		return binding.OrganizationID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	var wildcards []model.DomainBinding
	err = r.db.
		Where("pattern LIKE ? AND active = ?", "%*%", true).
		Order("length(pattern) DESC, id ASC").
		Find(&wildcards).Error
	if err != nil {
		return 0, err
	}
	for _, b := range wildcards {
		if b.Matches(host) {
			return b.OrganizationID, nil
		}
	}
	return 0, nil
}

// explicitOrganization reads the explicit organization id from the header or,
// failing that, the query string. Returns zero when absent or unparseable.
func explicitOrganization(c echo.Context) uint {
	raw := c.Request().Header.Get(OrganizationHeader)
	if raw == "" {
		raw = c.QueryParam(OrganizationParam)
	}
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0
	}
	return uint(id)
}

// normalizeHost strips the port and lowercases the hostname. A missing or
// malformed host yields an empty string, which is a failed lookup, not an
// error.
func normalizeHost(raw string) string {
	host := strings.TrimSpace(raw)
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimSuffix(host, "."))
}
