package profiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParamsSplitsKeyValuesAndTag(t *testing.T) {
	params, sub, err := ParseParams("filename:prof.json,continuous_dump:1,0")
	require.NoError(t, err)
	assert.Equal(t, SubcommandSetConfig, sub)
	assert.Equal(t, "prof.json", params["filename"])
	assert.Equal(t, "1", params["continuous_dump"])
}

func TestParseParamsRejectsEmptyBody(t *testing.T) {
	_, _, err := ParseParams("")
	assert.Error(t, err)
}

func TestParseParamsRejectsMalformedPair(t *testing.T) {
	_, _, err := ParseParams("nocolon,0")
	assert.Error(t, err)
}

func TestDispatchSetConfigPrefixesFilenameWithRank(t *testing.T) {
	p := NewKlogProfiler(3)
	err := Dispatch(p, "filename:prof.json,0")
	require.NoError(t, err)
	assert.Equal(t, "rank3_prof.json", p.config["filename"])
}

func TestDispatchUnknownSubcommandErrors(t *testing.T) {
	p := NewKlogProfiler(0)
	err := Dispatch(p, "k:v,9")
	assert.Error(t, err)
}
