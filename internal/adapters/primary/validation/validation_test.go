package validation_test

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/ticket-tally/internal/adapters/primary/validation"
	apperrors "github.com/lorrc/ticket-tally/internal/core/errors"
)

func TestValidator_Chain(t *testing.T) {
	v := validation.NewValidator()

	v.Required("operator", "  ").
		MaxLength("operator", strings.Repeat("a", 5), 3).
		Date("date", "2024-13-01").
		Custom("counts", false, "At least one count is required")

	require.True(t, v.HasErrors())
	errs := v.Errors()
	assert.Len(t, errs.Errors["operator"], 2)
	assert.Equal(t, "Must be a date formatted as YYYY-MM-DD", errs.First("date"))
	assert.True(t, errors.Is(errs, apperrors.ErrValidation))
}

func TestValidator_Valid(t *testing.T) {
	v := validation.NewValidator()

	v.Required("operator", "asha").Date("date", "2024-02-29").Date("optional", "")

	assert.False(t, v.HasErrors())
}

func TestDecodeAndValidate(t *testing.T) {
	type body struct {
		Counts map[string]any `json:"counts"`
	}

	t.Run("numbers stay exact", func(t *testing.T) {
		r := httptest.NewRequest("PUT", "/", strings.NewReader(`{"counts":{"Bank":3}}`))

		req, err := validation.DecodeAndValidate[body](r)

		require.NoError(t, err)
		assert.Equal(t, json.Number("3"), req.Counts["Bank"])
	})

	t.Run("malformed json", func(t *testing.T) {
		r := httptest.NewRequest("PUT", "/", strings.NewReader(`{"counts":`))

		_, err := validation.DecodeAndValidate[body](r)

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, 400, appErr.StatusCode)
	})
}
