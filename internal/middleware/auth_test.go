package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"pos-backend/internal/models"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func guardedRouter(guard gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/guarded", guard, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"operatorId": OperatorID(c), "role": Role(c)})
	})
	return r
}

func doRequest(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthGuardRejectsMissingAndMalformedTokens(t *testing.T) {
	r := guardedRouter(RegisterAuth(testSecret))

	for _, header := range []string{"", "Token abc", "Bearer", "Bearer not-a-jwt"} {
		if rec := doRequest(r, header); rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestAuthGuardRejectsExpiredToken(t *testing.T) {
	r := guardedRouter(RegisterAuth(testSecret))
	token := signedToken(t, jwt.MapClaims{
		"sub":  "op-1",
		"role": models.RoleCashier,
		"exp":  time.Now().Add(-time.Minute).Unix(),
	})

	if rec := doRequest(r, "Bearer "+token); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}
}

func TestAdminAuthForbidsCashier(t *testing.T) {
	r := guardedRouter(AdminAuth(testSecret))
	token := signedToken(t, jwt.MapClaims{
		"sub":  "op-1",
		"role": models.RoleCashier,
		"exp":  time.Now().Add(time.Minute).Unix(),
	})

	if rec := doRequest(r, "Bearer "+token); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier on admin route, got %d", rec.Code)
	}
}

func TestRegisterAuthSetsOperator(t *testing.T) {
	r := guardedRouter(RegisterAuth(testSecret))
	token := signedToken(t, jwt.MapClaims{
		"sub":  "op-7",
		"role": models.RoleCashier,
		"exp":  time.Now().Add(time.Minute).Unix(),
	})

	rec := doRequest(r, "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != `{"operatorId":"op-7","role":"cajero"}` {
		t.Fatalf("unexpected body %s", body)
	}
}
