package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:      http.StatusBadRequest,
		KindUnauthenticated: http.StatusUnauthorized,
		KindForbidden:       http.StatusForbidden,
		KindNotFound:        http.StatusNotFound,
		KindConflict:        http.StatusConflict,
		KindInternal:        http.StatusInternalServerError,
	}
	for k, want := range cases {
		assert.Equal(t, want, k.Status(), k.String())
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("start rental: %w", Conflict("Room has already been rented"))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, Is(err, KindConflict))
	assert.False(t, Is(err, KindNotFound))

	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))

	cause := errors.New("disk full")
	in := Internal("Failed to save", cause)
	assert.ErrorIs(t, in, cause)
	assert.Equal(t, "Failed to save: disk full", in.Error())
}

func TestValidationFields(t *testing.T) {
	e := ValidationFields(map[string]string{"name": "required"})
	assert.Equal(t, KindValidation, e.Kind)
	assert.Equal(t, "required", e.Fields["name"])
}
