package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoolDefaultsWhenUnset(t *testing.T) {
	t.Setenv("PARAMSERVER_TEST_UNSET", "")
	assert.True(t, Bool("PARAMSERVER_TEST_UNSET", true))
	assert.False(t, Bool("PARAMSERVER_TEST_UNSET", false))
}

func TestBoolParsesTruthyForms(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("PARAMSERVER_TEST_BOOL", v)
			assert.True(t, Bool("PARAMSERVER_TEST_BOOL", false))
		})
	}
}

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("PARAMSERVER_TEST_INT", "not-a-number")
	assert.Equal(t, 7, Int("PARAMSERVER_TEST_INT", 7))
}

func TestStringReturnsDefaultWhenEmpty(t *testing.T) {
	t.Setenv("PARAMSERVER_TEST_STR", "")
	assert.Equal(t, "fallback", String("PARAMSERVER_TEST_STR", "fallback"))
}
