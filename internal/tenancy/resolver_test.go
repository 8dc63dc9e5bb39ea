package tenancy

import (
	"net/http/httptest"
	"testing"

	"scouthub/pkg/jwtutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return db, mock
}

func newRequestContext(t *testing.T, host string, header map[string]string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest("GET", "/", nil)
	if host != "" {
		req.Host = host
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func claimsWithOrganization(orgID uint, role string) *jwtutil.UserClaims {
	return &jwtutil.UserClaims{
		UserID:         1,
		Email:          "user@example.com",
		OrganizationID: &orgID,
		Role:           role,
	}
}

func TestResolveClaimWinsWithoutQueryingBindings(t *testing.T) {
	db, mock := newTestDB(t)
	r := NewResolver(db, zap.NewNop())

	// The host maps to nothing in the database; no expectations are set, so
	// any binding lookup would fail the test.
	c := newRequestContext(t, "irrelevant.example.com", nil)
	res := r.Resolve(c, claimsWithOrganization(7, "admin"))

	if res.OrganizationID != 7 {
		t.Fatalf("expected organization 7, got %d", res.OrganizationID)
	}
	if res.Source != SourceClaim {
		t.Fatalf("expected claim source, got %s", res.Source)
	}
	if res.SpoofAttempt {
		t.Fatalf("unexpected spoof flag")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("domain bindings were queried: %v", err)
	}
}

func TestResolveExactMatchBeatsWildcard(t *testing.T) {
	db, mock := newTestDB(t)
	r := NewResolver(db, zap.NewNop())

	mock.ExpectQuery(`SELECT \* FROM "domain_bindings" WHERE \(pattern = \$1 AND active = \$2\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "pattern", "organization_id", "active"}).
			AddRow(3, "meute6a.app", 42, true))

	c := newRequestContext(t, "meute6a.app", nil)
	res := r.Resolve(c, nil)

	if res.OrganizationID != 42 {
		t.Fatalf("expected organization 42, got %d", res.OrganizationID)
	}
	if res.Source != SourceDomain {
		t.Fatalf("expected domain source, got %s", res.Source)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResolveWildcardLongestPatternWins(t *testing.T) {
	db, mock := newTestDB(t)
	r := NewResolver(db, zap.NewNop())

	mock.ExpectQuery(`SELECT \* FROM "domain_bindings" WHERE \(pattern = \$1 AND active = \$2\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "pattern", "organization_id", "active"}))

	// Rows arrive ordered by pattern length descending, as the query asks.
	mock.ExpectQuery(`SELECT \* FROM "domain_bindings" WHERE \(pattern LIKE \$1 AND active = \$2\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "pattern", "organization_id", "active"}).
			AddRow(9, "*.meute.scouthub.org", 5, true).
			AddRow(2, "*.scouthub.org", 6, true))

	c := newRequestContext(t, "web.meute.scouthub.org", nil)
	res := r.Resolve(c, nil)

	if res.OrganizationID != 5 {
		t.Fatalf("expected longest wildcard to win (org 5), got %d", res.OrganizationID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResolveHostNormalization(t *testing.T) {
	db, mock := newTestDB(t)
	r := NewResolver(db, zap.NewNop())

	mock.ExpectQuery(`SELECT \* FROM "domain_bindings" WHERE \(pattern = \$1 AND active = \$2\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "pattern", "organization_id", "active"}).
			AddRow(3, "meute6a.app", 42, true))

	c := newRequestContext(t, "MEUTE6A.APP:8443", nil)
	res := r.Resolve(c, nil)

	if res.OrganizationID != 42 {
		t.Fatalf("expected organization 42, got %d", res.OrganizationID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResolveSpoofFlaggedOnMismatchedClaim(t *testing.T) {
	db, _ := newTestDB(t)
	r := NewResolver(db, zap.NewNop())

	c := newRequestContext(t, "irrelevant.example.com", map[string]string{
		OrganizationHeader: "9",
	})
	res := r.Resolve(c, claimsWithOrganization(7, "admin"))

	if !res.SpoofAttempt {
		t.Fatalf("expected spoof flag")
	}
	// The verified claim still wins the resolution.
	if res.OrganizationID != 7 || res.Source != SourceClaim {
		t.Fatalf("expected claim to win, got org=%d source=%s", res.OrganizationID, res.Source)
	}
}

func TestResolveSpoofFlaggedWithoutCredential(t *testing.T) {
	db, mock := newTestDB(t)
	r := NewResolver(db, zap.NewNop())

	mock.ExpectQuery(`SELECT \* FROM "domain_bindings" WHERE \(pattern = \$1 AND active = \$2\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "pattern", "organization_id", "active"}))
	mock.ExpectQuery(`SELECT \* FROM "domain_bindings" WHERE \(pattern LIKE \$1 AND active = \$2\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "pattern", "organization_id", "active"}))

	c := newRequestContext(t, "example.com", map[string]string{
		OrganizationHeader: "9",
	})
	res := r.Resolve(c, nil)

	if !res.SpoofAttempt {
		t.Fatalf("expected spoof flag for parameter without verified claim")
	}
	if res.OrganizationID != 0 {
		t.Fatalf("parameter must not resolve the tenant, got %d", res.OrganizationID)
	}
}

func TestResolveExplicitAcceptedWhenClaimMatches(t *testing.T) {
	db, _ := newTestDB(t)
	r := NewResolver(db, zap.NewNop())

	c := newRequestContext(t, "example.com", map[string]string{
		OrganizationHeader: "7",
	})
	res := r.Resolve(c, claimsWithOrganization(7, "staff"))

	if res.SpoofAttempt {
		t.Fatalf("unexpected spoof flag")
	}
	if res.OrganizationID != 7 || res.Source != SourceExplicit {
		t.Fatalf("expected explicit resolution, got org=%d source=%s", res.OrganizationID, res.Source)
	}
}

func TestResolveDatabaseErrorDegradesToUnresolved(t *testing.T) {
	db, mock := newTestDB(t)
	r := NewResolver(db, zap.NewNop())

	mock.ExpectQuery(`SELECT \* FROM "domain_bindings" WHERE \(pattern = \$1 AND active = \$2\)`).
		WillReturnError(sqlmock.ErrCancelled)

	c := newRequestContext(t, "meute6a.app", nil)
	res := r.Resolve(c, nil)

	if res.OrganizationID != 0 || res.Source != SourceNone {
		t.Fatalf("expected unresolved on database error, got org=%d source=%s", res.OrganizationID, res.Source)
	}
}

func TestResolveCachesPerRequest(t *testing.T) {
	db, mock := newTestDB(t)
	r := NewResolver(db, zap.NewNop())

	// Exactly one lookup is expected even though Resolve runs twice.
	mock.ExpectQuery(`SELECT \* FROM "domain_bindings" WHERE \(pattern = \$1 AND active = \$2\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "pattern", "organization_id", "active"}).
			AddRow(3, "meute6a.app", 42, true))

	c := newRequestContext(t, "meute6a.app", nil)
	first := r.Resolve(c, nil)
	second := r.Resolve(c, nil)

	if first != second {
		t.Fatalf("cached resolution differs: %+v vs %+v", first, second)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNormalizeHost(t *testing.T) {
	cases := map[string]string{
		"meute6a.app":      "meute6a.app",
		"MEUTE6A.APP:8443": "meute6a.app",
		"example.com.":     "example.com",
		"localhost:8080":   "localhost",
		"":                 "",
		"   ":              "",
	}
	for raw, want := range cases {
		if got := normalizeHost(raw); got != want {
			t.Errorf("normalizeHost(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestResolveMissingHost(t *testing.T) {
	db, _ := newTestDB(t)
	r := NewResolver(db, zap.NewNop())

	c := newRequestContext(t, "", nil)
	c.Request().Host = ""
	res := r.Resolve(c, nil)

	if res.OrganizationID != 0 || res.Source != SourceNone {
		t.Fatalf("expected unresolved for missing host, got %+v", res)
	}
}
