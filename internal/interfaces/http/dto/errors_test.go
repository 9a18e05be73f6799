package dto

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/retailpulse/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeUnknown, http.StatusInternalServerError},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeNoSourceLinked, http.StatusNotFound},
		{ErrCodeSourceUnavailable, http.StatusServiceUnavailable},
		{ErrCodeInsufficientData, http.StatusBadRequest},
		{ErrCodeMalformedSource, http.StatusBadRequest},
		{ErrCodeMalformedSheet, http.StatusBadRequest},
		{ErrCodeNoTabs, http.StatusBadRequest},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode_DomainErrors(t *testing.T) {
	tests := []struct {
		err      *shared.DomainError
		expected int
	}{
		{shared.ErrSourceUnavailable, http.StatusServiceUnavailable},
		{shared.ErrNoSourceLinked, http.StatusNotFound},
		{shared.ErrInsufficientData, http.StatusBadRequest},
		{shared.ErrMalformedSource, http.StatusBadRequest},
		{shared.ErrMalformedSheet, http.StatusBadRequest},
		{shared.ErrNoTabs, http.StatusBadRequest},
		{shared.ErrNotFound, http.StatusNotFound},
		{shared.ErrInvalidInput, http.StatusBadRequest},
		{shared.ErrUnauthorized, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			code := NormalizeErrorCode(tt.err.Code)
			assert.True(t, strings.HasPrefix(code, "ERR_"))
			assert.Equal(t, tt.expected, GetHTTPStatus(code))
		})
	}

	t.Run("unknown codes pass through", func(t *testing.T) {
		assert.Equal(t, "CUSTOM_ERROR", NormalizeErrorCode("CUSTOM_ERROR"))
	})
}

func TestErrorCodeConstants(t *testing.T) {
	for code := range DomainErrorCodeMapping {
		t.Run(code, func(t *testing.T) {
			_, ok := ErrorCodeHTTPStatus[DomainErrorCodeMapping[code]]
			assert.True(t, ok, "mapped code for %s should have a status", code)
		})
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("NOT_FOUND", "Resource not found")

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "Resource not found", resp.Error.Message)
	assert.NotZero(t, resp.Error.Timestamp)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "sheetUrl", Message: "sheetUrl must be a Google Sheets URL"},
	}
	resp := NewValidationErrorResponse("Request validation failed", "req-789", details)

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-789", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 1)
}

func TestResponseJSON(t *testing.T) {
	data, err := json.Marshal(NewSuccessResponse(ReportResponse{Report: map[string]int{"totalProducts": 3}}))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, true, decoded["success"])
	report := decoded["data"].(map[string]any)["report"].(map[string]any)
	assert.Equal(t, float64(3), report["totalProducts"])
	assert.NotContains(t, decoded, "error")
}
