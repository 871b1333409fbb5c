package users

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"campus/internal/domain"
)

func TestValidUserType(t *testing.T) {
	for _, typ := range []string{"admin", "professor", "student"} {
		assert.NoError(t, validUserType(typ))
	}

	err := validUserType("janitor")
	assert.True(t, domain.IsValidation(err))
	assert.EqualError(t, err, "type must be admin, professor or student")
}
