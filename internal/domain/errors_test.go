package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	conflict := Conflict("copy is not available")
	validation := Validation("class_pin", "invalid class PIN")
	notFound := NotFound("student not found")

	assert.True(t, IsConflict(conflict))
	assert.False(t, IsConflict(validation))
	assert.True(t, IsValidation(validation))
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsNotFound(errors.New("db down")))
}

func TestValidationCarriesField(t *testing.T) {
	err := Validation("professor_code", "invalid professor code")

	de, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "professor_code", de.Field)
	assert.Equal(t, "invalid professor code", de.Message)
	assert.Equal(t, "invalid professor code", err.Error())
}

func TestAsUnwrapsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("check in: %w", Conflict("session is not active"))

	assert.True(t, IsConflict(err))
	de, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, KindConflict, de.Kind)
}

func TestOpaqueErrorsAreNotDomainErrors(t *testing.T) {
	_, ok := As(errors.New("lock timeout"))
	assert.False(t, ok)
}
