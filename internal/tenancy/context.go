package tenancy

import (
	"github.com/labstack/echo/v4"
)

// requestContextKey is the single echo context key the bound request context
// lives under. Handlers read it through FromContext and never re-derive
// tenant or identity themselves.
const requestContextKey = "request_context"

// RequestContext is the resolved, request-scoped {organization, subject,
// role} tuple. It is created once by the context binder, read-only for the
// remainder of the request and discarded with it.
//
// UserID is nil on public routes served without a credential. Role is empty
// when the subject holds no membership in the resolved organization.
type RequestContext struct {
	OrganizationID uint
	UserID         *uint
	Role           string
}

// Authenticated reports whether a verified subject is bound to the request.
func (rc *RequestContext) Authenticated() bool {
	return rc != nil && rc.UserID != nil
}

// Bind attaches the context to the request. Called by the binder only.
func Bind(c echo.Context, rc *RequestContext) {
	c.Set(requestContextKey, rc)
}

// FromContext returns the request context bound by the middleware.
func FromContext(c echo.Context) (*RequestContext, bool) {
	rc, ok := c.Get(requestContextKey).(*RequestContext)
	return rc, ok
}
