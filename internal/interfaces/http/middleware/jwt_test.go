package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/retailpulse/backend/internal/infrastructure/auth"
	"github.com/retailpulse/backend/internal/infrastructure/config"
	"github.com/retailpulse/backend/internal/infrastructure/logger"
	"github.com/retailpulse/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:     "test-secret-key-at-least-32-chars",
		Issuer:     "test-issuer",
		CookieName: "token",
	})
}

func newJWTRouter(svc *auth.JWTService) *gin.Engine {
	router := gin.New()
	router.Use(JWTAuthMiddleware(JWTMiddlewareConfig{Validator: svc, CookieName: "token"}))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": GetJWTUserID(c),
			"ctx_id":  logger.GetUserID(c.Request.Context()),
		})
	})
	return router
}

func TestJWTAuthMiddleware(t *testing.T) {
	svc := newTestJWTService()
	valid, err := svc.GenerateToken("user-42", time.Minute)
	require.NoError(t, err)
	expired, err := svc.GenerateToken("user-42", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name     string
		prepare  func(r *http.Request)
		wantCode int
		wantErr  string
	}{
		{
			name:     "bearer header",
			prepare:  func(r *http.Request) { r.Header.Set(AuthHeaderKey, BearerPrefix+valid) },
			wantCode: http.StatusOK,
		},
		{
			name:     "session cookie",
			prepare:  func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: valid}) },
			wantCode: http.StatusOK,
		},
		{
			name:     "missing token",
			prepare:  func(*http.Request) {},
			wantCode: http.StatusUnauthorized,
			wantErr:  dto.ErrCodeUnauthorized,
		},
		{
			name:     "basic scheme",
			prepare:  func(r *http.Request) { r.Header.Set(AuthHeaderKey, "Basic abc") },
			wantCode: http.StatusUnauthorized,
			wantErr:  dto.ErrCodeUnauthorized,
		},
		{
			name:     "garbage token",
			prepare:  func(r *http.Request) { r.Header.Set(AuthHeaderKey, BearerPrefix+"not-a-jwt") },
			wantCode: http.StatusUnauthorized,
			wantErr:  dto.ErrCodeTokenInvalid,
		},
		{
			name:     "expired token",
			prepare:  func(r *http.Request) { r.Header.Set(AuthHeaderKey, BearerPrefix+expired) },
			wantCode: http.StatusUnauthorized,
			wantErr:  dto.ErrCodeTokenExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			tt.prepare(req)
			w := httptest.NewRecorder()
			newJWTRouter(svc).ServeHTTP(w, req)

			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantErr == "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, "user-42", body["user_id"])
				assert.Equal(t, "user-42", body["ctx_id"])
				return
			}
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantErr, resp.Error.Code)
		})
	}
}

func TestGetJWTClaims_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetJWTClaims(c))
	assert.Empty(t, GetJWTUserID(c))
}
