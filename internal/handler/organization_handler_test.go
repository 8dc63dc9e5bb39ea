package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scouthub/internal/tenancy"
	"scouthub/prometheus"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newOrganizationHandler(db *gorm.DB) *OrganizationHandler {
	return NewOrganizationHandler(db, tenancy.NewResolver(db, zap.NewNop()))
}

// Creating an organization also refreshes the active-organizations gauge
// from the database.
func TestCreateOrganizationRefreshesActiveGauge(t *testing.T) {
	db, mock := newTestDB(t)
	h := newOrganizationHandler(db)
	e := echo.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "organizations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectQuery(`INSERT INTO "memberships"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "organizations"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Meute 6A"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	userID := uint(10)
	tenancy.Bind(c, &tenancy.RequestContext{UserID: &userID})

	if err := h.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if got := testutil.ToFloat64(prometheus.ActiveOrganizationsGauge); got != 3 {
		t.Fatalf("expected gauge 3, got %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateOrganizationRequiresIdentity(t *testing.T) {
	db, _ := newTestDB(t)
	h := newOrganizationHandler(db)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Meute 6A"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	tenancy.Bind(c, &tenancy.RequestContext{})

	if err := h.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (%s)", rec.Code, rec.Body.String())
	}
}
