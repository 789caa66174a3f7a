package quotes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	text, err := s.Text("reminder/noMemo")
	require.NoError(t, err)
	assert.Equal(t, "no memo specified", text)
}

func TestTextPicksFromAlternatives(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	choices, err := s.List("startup")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		text, err := s.Text("startup")
		require.NoError(t, err)
		assert.Contains(t, choices, text)
	}
}

func TestTextfFormats(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	text, err := s.Textf("errors/indexOutOfBounds", 3)
	require.NoError(t, err)
	assert.Equal(t, "There are only 3 reminders in the list.", text)
}

func TestIntMap(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	table, err := s.IntMap("timestamp/units/days/keywords")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"tomorrow": 1}, table)
}

func TestMissingPathIsSurfaced(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	_, err = s.Text("reminder/doesNotExist")
	var pathErr *PathError
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, "doesNotExist", pathErr.Node)
}

func TestListRejectsNonListNode(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	// timestamp/units is an object without a "default" list
	_, err = s.List("timestamp/units")
	var pathErr *PathError
	require.ErrorAs(t, err, &pathErr)
}

func TestValidate(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	require.NoError(t, s.Validate(Requirements{
		Lists: []string{"interaction/affirmations", "timestamp/patterns/date"},
		Maps:  []string{"timestamp/units/weeks/keywords"},
	}))

	err = s.Validate(Requirements{Lists: []string{"nope"}})
	require.Error(t, err)
}
