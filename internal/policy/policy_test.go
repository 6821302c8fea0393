package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole("ADMIN")
	require.NoError(t, err)
	assert.Equal(t, Admin, r)

	r, err = ParseRole(" user ")
	require.NoError(t, err)
	assert.Equal(t, User, r)

	_, err = ParseRole("root")
	assert.Error(t, err)
}

func TestSchemas(t *testing.T) {
	assert.Equal(t, []string{"company"}, User.Schemas())
	assert.Equal(t, []string{"company", "finance"}, Admin.Schemas())
	assert.Empty(t, Role("guest").Schemas())
}

func TestSchemasReturnsCopy(t *testing.T) {
	s := Admin.Schemas()
	s[0] = "public"
	assert.Equal(t, []string{"company", "finance"}, Admin.Schemas())
}

func TestAllows(t *testing.T) {
	assert.True(t, User.Allows("company"))
	assert.False(t, User.Allows("COMPANY"))
	assert.False(t, Admin.Allows("Finance"))
	assert.False(t, User.Allows("finance"))
	assert.True(t, Admin.Allows("finance"))
	assert.False(t, Admin.Allows("public"))
}

func TestAllSchemas(t *testing.T) {
	assert.Equal(t, []string{"company", "finance"}, AllSchemas())
}
