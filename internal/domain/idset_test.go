package domain

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDSetAddReportsNovelty(t *testing.T) {
	t.Parallel()

	s := NewIDSet("a", "b", "a")
	assert.Equal(t, 2, s.Len())
	assert.False(t, s.Add("b"))
	assert.True(t, s.Add("c"))
	assert.Equal(t, []string{"a", "b", "c"}, s.Values())
}

func TestIDSetTrimDropsOldest(t *testing.T) {
	t.Parallel()

	s := NewIDSet("a", "b", "c", "d")
	assert.Equal(t, 2, s.Trim(2))
	assert.Equal(t, []string{"c", "d"}, s.Values())
	assert.False(t, s.Has("a"))
	assert.True(t, s.Add("a"), "trimmed ids can be added again")

	assert.Zero(t, s.Trim(0))
	assert.Equal(t, 3, s.Len())
}

func TestIDSetCloneIsIndependent(t *testing.T) {
	t.Parallel()

	s := NewIDSet("a")
	c := s.Clone()
	c.Add("b")
	assert.False(t, s.Has("b"))

	var nilSet *IDSet
	assert.Zero(t, nilSet.Len())
	assert.False(t, nilSet.Has("x"))
	assert.Equal(t, 0, nilSet.Clone().Len())
}

func TestIDSetJSONKeepsOrder(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(NewIDSet("z", "a", "m"))
	require.NoError(t, err)
	assert.JSONEq(t, `["z","a","m"]`, string(raw))

	var back IDSet
	require.NoError(t, json.Unmarshal([]byte(`["x","x","y"]`), &back))
	assert.Equal(t, []string{"x", "y"}, back.Values())

	empty, err := json.Marshal(NewIDSet())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}
