package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	notificationapp "github.com/retailpulse/backend/internal/application/notification"
	"github.com/retailpulse/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newNotificationRouter(svc *MockNotificationService) *gin.Engine {
	h := NewNotificationHandler(svc)
	router := gin.New()
	g := router.Group("/notify", withUser(testUserID))
	g.GET("", h.List)
	g.PATCH("/:id/read", h.MarkRead)
	return router
}

func TestNotificationHandler_List(t *testing.T) {
	svc := new(MockNotificationService)
	svc.On("ListUnread", mock.Anything, testUserID).Return([]notificationapp.NotificationResponse{
		{ID: uuid.New(), Type: "stock_alert", ProductName: "Widget", Message: "Low stock alert", Severity: "medium", CreatedAt: time.Now()},
	}, nil)

	w := httptest.NewRecorder()
	newNotificationRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notify", nil))

	require.Equal(t, http.StatusOK, w.Code)
	items := decodeResponse(t, w).Data.([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "medium", items[0].(map[string]any)["severity"])
}

func TestNotificationHandler_MarkRead(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name       string
		path       string
		setup      func(*MockNotificationService)
		wantStatus int
	}{
		{
			name:       "marks read",
			path:       "/notify/" + id.String() + "/read",
			setup:      func(m *MockNotificationService) { m.On("MarkRead", mock.Anything, testUserID, id).Return(nil) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "bad id",
			path:       "/notify/not-a-uuid/read",
			setup:      func(*MockNotificationService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "someone else's notification",
			path:       "/notify/" + id.String() + "/read",
			setup:      func(m *MockNotificationService) { m.On("MarkRead", mock.Anything, testUserID, id).Return(shared.ErrNotFound) },
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockNotificationService)
			tt.setup(svc)

			w := httptest.NewRecorder()
			newNotificationRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPatch, tt.path, nil))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
