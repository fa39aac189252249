package cgparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCPUSet(t *testing.T) {
	cases := []struct {
		in   string
		want CPUSet
	}{
		{"", CPUSet{}},
		{"2,5", CPUSet{2, 5}},
		{"0-3", CPUSet{0, 1, 2, 3}},
		{"0-2,5,5,7-8", CPUSet{0, 1, 2, 5, 7, 8}},
	}
	for _, c := range cases {
		got, err := ParseCPUSet(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestParseCPUSetInvalid(t *testing.T) {
	for _, in := range []string{"a", "3-1", "-1", "1-"} {
		_, err := ParseCPUSet(in)
		assert.Error(t, err, in)
	}
}

func TestCanonicalizeRoundTrip(t *testing.T) {
	for _, in := range []string{"0-2,5,7-8", "2,5", "0-3", ""} {
		parsed, err := ParseCPUSet(in)
		require.NoError(t, err)
		canon := parsed.Canonicalize()
		reparsed, err := ParseCPUSet(canon)
		require.NoError(t, err)
		assert.Equal(t, parsed, reparsed, "p(c(p(s))) != p(s) for %q", in)
	}
}

func TestIntersect(t *testing.T) {
	c, err := ParseCPUSet("0,2,5,9")
	require.NoError(t, err)
	host, err := ParseCPUSet("0-7")
	require.NoError(t, err)
	got := Intersect(c, host)
	assert.Equal(t, CPUSet{0, 2, 5}, got)
}
