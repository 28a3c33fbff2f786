package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstringMatcher(t *testing.T) {
	t.Parallel()

	m := DefaultMatcher
	assert.True(t, m.Match("test_add"))
	assert.True(t, m.Match("math_test"))
	assert.True(t, m.Match("latest"))
	assert.False(t, m.Match("Test_upper"))
	assert.False(t, m.Match("helper"))
}

func TestConventionMatcher(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"test_add":    true,
		"TestAdd":     true,
		"math_test":   true,
		"math-test":   true,
		"math.test":   true,
		"latest":      false,
		"contest_one": false,
		"helper":      false,
	}

	m := ConventionMatcher{}
	for name, want := range tests {
		assert.Equal(t, want, m.Match(name), name)
	}
}

func TestNewMatcher(t *testing.T) {
	t.Parallel()

	m, err := NewMatcher("")
	require.NoError(t, err)
	assert.Equal(t, DefaultMatcher, m)

	m, err = NewMatcher("convention")
	require.NoError(t, err)
	assert.IsType(t, ConventionMatcher{}, m)

	_, err = NewMatcher("glob")
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestFilterCompileSelector(t *testing.T) {
	t.Parallel()

	cf, err := Filter{Select: "./dir/a_test.sh:test_x"}.compile()
	require.NoError(t, err)
	assert.Equal(t, "dir/a_test.sh", cf.selectModule)
	assert.Equal(t, "test_x", cf.selectUnit)

	assert.True(t, cf.module("dir/a_test.sh"))
	assert.True(t, cf.module("root/dir/a_test.sh"))
	assert.False(t, cf.module("other/a_test.sh"))
	assert.True(t, cf.unit("test_x"))
	assert.False(t, cf.unit("test_y"))

	for _, bad := range []string{"no_colon", ":test_x", "a_test.sh:"} {
		_, err := Filter{Select: bad}.compile()
		require.ErrorIs(t, err, ErrInvalidFilter, bad)
	}
}

func TestFilterCompileExpressions(t *testing.T) {
	t.Parallel()

	cf, err := Filter{IncludeModules: "^api/", ExcludeModules: "slow", IncludeUnits: "^test_", ExcludeUnits: "_wip$"}.compile()
	require.NoError(t, err)

	assert.True(t, cf.module("api/users_test.sh"))
	assert.False(t, cf.module("api/slow_test.sh"))
	assert.False(t, cf.module("ui/login_test.sh"))
	assert.True(t, cf.unit("test_create"))
	assert.False(t, cf.unit("test_create_wip"))
	assert.False(t, cf.unit("check_test"))

	_, err = Filter{ExcludeModules: "[a-"}.compile()
	require.ErrorIs(t, err, ErrInvalidFilter)
}
