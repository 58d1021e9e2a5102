package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_WithDetails(t *testing.T) {
	err := ErrSnapshotNotFound.WithDetails(map[string]string{"offering_id": "acme_ltd"})
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, CodeNotFound, err.ErrorCode)
	assert.Equal(t, "No snapshot stored for this offering", err.Error())
	assert.Equal(t, map[string]string{"offering_id": "acme_ltd"}, err.Details)

	// The shared value stays untouched.
	assert.Nil(t, ErrSnapshotNotFound.Details)
	assert.NotSame(t, ErrSnapshotNotFound, err)

	inv := InvalidRequestWithError(errors.New("unexpected EOF"))
	assert.Equal(t, CodeInvalidRequest, inv.ErrorCode)
	assert.Equal(t, "unexpected EOF", inv.Details)
	assert.Nil(t, ErrInvalidRequest.Details)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrValidation("limit", "limit must be positive"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			ErrorCode string          `json:"error_code"`
			Details   ValidationError `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, CodeValidationFailed, body.Error.ErrorCode)
	assert.Equal(t, "limit", body.Error.Details.Field)
}

func TestAppError(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name      string
		err       *AppError
		wantType  ErrorType
		wantText  string
		retryable bool
	}{
		{
			name:      "network error wraps cause",
			err:       NewNetworkError("fetch demand schedule", cause),
			wantType:  ErrTypeNetwork,
			wantText:  "[NETWORK] fetch demand schedule: connection reset",
			retryable: true,
		},
		{
			name:     "parsing error",
			err:      NewParsingError("no table in page", nil),
			wantType: ErrTypeParsing,
			wantText: "[PARSING] no table in page",
		},
		{
			name:     "not found error",
			err:      NewNotFoundError("snapshot", nil),
			wantType: ErrTypeNotFound,
			wantText: "[NOT_FOUND] snapshot not found",
		},
		{
			name:     "storage error",
			err:      NewStorageError("insert snapshot", cause),
			wantType: ErrTypeStorage,
			wantText: "[STORAGE] insert snapshot: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantText, tt.err.Error())
			assert.Equal(t, tt.retryable, Retryable(tt.err))
			assert.True(t, IsType(tt.err, tt.wantType))
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := NewStorageError("save", cause).WithContext("offering_id", "acme_ltd")

	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "acme_ltd", wrapped.Context["offering_id"])

	var appErr *AppError
	require.ErrorAs(t, errors.Join(errors.New("other"), wrapped), &appErr)
	assert.Equal(t, ErrTypeStorage, appErr.Type)
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	pd := NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found", "", "/api/x").
		WithExtension("trace_id", "abc").
		WithExtension("status", 999)

	raw, err := json.Marshal(pd)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, float64(http.StatusNotFound), got["status"])
	assert.Equal(t, "abc", got["trace_id"])
	assert.Equal(t, "/api/x", got["instance"])
	assert.NotContains(t, got, "detail")
}
