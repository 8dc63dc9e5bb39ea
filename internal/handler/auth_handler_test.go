package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scouthub/internal/response"
	"scouthub/pkg/config"
	"scouthub/pkg/jwtutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
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

func newAuthHandler(db *gorm.DB) *AuthHandler {
	cfg, _ := config.Load()
	return NewAuthHandler(db, jwtutil.New(&cfg.JWT), cfg)
}

func postJSON(e *echo.Echo, h echo.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	_ = h(e.NewContext(req, rec))
	return rec
}

// The reset token is consumed with a conditional update: the first request
// flips consumed to true and proceeds, a second request presenting the same
// token sees zero rows affected and is rejected. This is the same outcome
// two concurrent requests would see, with the database serializing the
// update.
func TestConfirmPasswordResetConsumesTokenOnce(t *testing.T) {
	db, mock := newTestDB(t)
	h := newAuthHandler(db)
	e := echo.New()

	// First presentation wins the conditional update.
	mock.ExpectExec(`UPDATE "one_time_tokens" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT "user_id" FROM "one_time_tokens" WHERE token = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(10))
	mock.ExpectExec(`UPDATE "users" SET "password"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := postJSON(e, h.ConfirmPasswordReset, `{"token":"tok123","password":"new-password"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	// Second presentation observes consumed = true: zero rows affected.
	mock.ExpectExec(`UPDATE "one_time_tokens" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rec = postJSON(e, h.ConfirmPasswordReset, `{"token":"tok123","password":"other-password"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for consumed token, got %d (%s)", rec.Code, rec.Body.String())
	}

	var env response.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Success || env.Message != "invalid or expired reset token" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestConfirmPasswordResetRequiresFields(t *testing.T) {
	db, _ := newTestDB(t)
	h := newAuthHandler(db)
	e := echo.New()

	rec := postJSON(e, h.ConfirmPasswordReset, `{"token":"","password":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestVerifyEmailConsumesToken(t *testing.T) {
	db, mock := newTestDB(t)
	h := newAuthHandler(db)
	e := echo.New()

	mock.ExpectExec(`UPDATE "one_time_tokens" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT "user_id" FROM "one_time_tokens" WHERE token = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(4))
	mock.ExpectExec(`UPDATE "users" SET "email_verified"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodGet, "/?token=verify123", nil)
	rec := httptest.NewRecorder()
	if err := h.VerifyEmail(e.NewContext(req, rec)); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
