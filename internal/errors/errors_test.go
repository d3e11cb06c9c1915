package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError(t *testing.T) {
	err := New(http.StatusConflict, "CONFLICT", "task already submitted")
	assert.Equal(t, "task already submitted", err.Error())

	var target *APIError
	wrapped := errors.Join(errors.New("outer"), err)
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, http.StatusConflict, target.StatusCode)

	nf := NotFoundError("task")
	assert.Equal(t, "task not found", nf.Message)
	assert.Equal(t, "task", nf.Details)
}

func TestFromValidation(t *testing.T) {
	type request struct {
		CreditsToConsume int    `json:"credits_to_consume" validate:"min=1"`
		Email            string `json:"email" validate:"required,email"`
	}
	v := validator.New()

	err := v.Struct(request{CreditsToConsume: 0, Email: "nope"})
	require.Error(t, err)

	apiErr := FromValidation(err)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)

	fields, ok := apiErr.Details.([]ValidationError)
	require.True(t, ok)
	require.Len(t, fields, 2)
	assert.Equal(t, ValidationError{Field: "CreditsToConsume", Message: "must be at least 1"}, fields[0])
	assert.Equal(t, ValidationError{Field: "Email", Message: "must be a valid email address"}, fields[1])

	plain := FromValidation(errors.New("unexpected EOF"))
	assert.Equal(t, "INVALID_REQUEST", plain.ErrorCode)
	assert.Equal(t, "unexpected EOF", plain.Details)
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	pd := NewProblemDetails(http.StatusForbidden, TypeHubRejected, "License Required", "denied", "/api/tasks").
		WithExtension("trace_id", "abc").
		WithExtension("type", "ignored")

	raw, err := json.Marshal(pd)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, TypeHubRejected, got["type"], "standard fields win over extensions")
	assert.Equal(t, "License Required", got["title"])
	assert.Equal(t, float64(http.StatusForbidden), got["status"])
	assert.Equal(t, "denied", got["detail"])
	assert.Equal(t, "/api/tasks", got["instance"])
	assert.Equal(t, "abc", got["trace_id"])

	empty := &ProblemDetails{Type: TypeInternal, Title: "x", Status: 500}
	empty.WithExtension("k", 1)
	raw, err = json.Marshal(empty)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "detail")
}
