package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type fakeVerifier map[string]*auth.Token

func (f fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	token, ok := f[idToken]
	if !ok {
		return nil, errors.New("ID token has expired")
	}
	return token, nil
}

func TestFirebaseAdminMiddleware(t *testing.T) {
	verifier := fakeVerifier{
		"admin-token": {UID: "ops-1", Claims: map[string]interface{}{AdminClaim: true}},
		"user-token":  {UID: "user-1", Claims: map[string]interface{}{}},
	}

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantUID  string
	}{
		{name: "admin", header: "Bearer admin-token", wantCode: http.StatusNoContent, wantUID: "ops-1"},
		{name: "regular user", header: "Bearer user-token", wantCode: http.StatusForbidden},
		{name: "expired", header: "Bearer stale", wantCode: http.StatusUnauthorized},
		{name: "missing header", header: "", wantCode: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Token admin-token", wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			var uid string
			e.GET("/admin", func(c echo.Context) error {
				uid, _ = c.Get("firebaseUID").(string)
				return c.NoContent(http.StatusNoContent)
			}, FirebaseAdminMiddleware(verifier))

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantUID, uid)
		})
	}
}
