package fmri

import (
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFullFMRI(t *testing.T) {
	f, err := Parse("pkg://solaris/system/library@0.5.11,5.11-0.175.1:20120101T000000Z")
	require.NoError(t, err)
	assert.Equal(t, "solaris", f.Publisher)
	assert.Equal(t, "system/library", f.Stem())
	assert.Equal(t, Version{Release: "0.5.11", Build: "5.11", Branch: "0.175.1", Timestamp: "20120101T000000Z"}, f.Version)
	assert.Equal(t, "pkg://solaris/system/library@0.5.11,5.11-0.175.1:20120101T000000Z", f.String())
	assert.Equal(t, "pkg:/system/library@0.5.11,5.11-0.175.1", f.Short())
}

func TestParseShortForms(t *testing.T) {
	tests := []struct {
		input string
		short string
	}{
		{input: "pkg:/web/server@1.0", short: "pkg:/web/server@1.0"},
		{input: "web/server@1.0", short: "pkg:/web/server@1.0"},
		{input: "web/server", short: "pkg:/web/server"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.short, f.Short())
		})
	}
}

func TestParseRejectsIllegalValues(t *testing.T) {
	for _, input := range []string{"", "pkg://", "@1.0", "web/server@1.x", "web/server@1.0:yesterday"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			require.Error(t, err)
			assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
		})
	}
}

func TestCompareOrdersNumerically(t *testing.T) {
	older, err := Parse("pkg:/a@1.9")
	require.NoError(t, err)
	newer, err := Parse("pkg:/a@1.10")
	require.NoError(t, err)
	assert.Negative(t, Compare(older, newer))
	assert.Positive(t, Compare(newer, older))
	assert.True(t, newer.IsSuccessor(older))
	assert.False(t, older.IsSuccessor(newer))

	unversioned, err := Parse("pkg:/a")
	require.NoError(t, err)
	assert.True(t, older.IsSuccessor(unversioned))
}

func TestMatches(t *testing.T) {
	f, err := Parse("pkg://solaris/system/library/math@0.5.11")
	require.NoError(t, err)
	tests := []struct {
		pattern string
		match   bool
	}{
		{pattern: "system/library/math", match: true},
		{pattern: "pkg:/system/library/math@0.5", match: true},
		{pattern: "pkg://solaris/system/library/math", match: true},
		{pattern: "system/*", match: false},
		{pattern: "system/*/*", match: true},
		{pattern: "math", match: true},
		{pattern: "library/*", match: true},
		{pattern: "pkg:/system/library/math@1.0", match: false},
		{pattern: "other", match: false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.match, f.Matches(tt.pattern))
		})
	}
}
