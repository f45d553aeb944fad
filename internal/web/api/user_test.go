package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUserID(t *testing.T) {
	// the JWT middleware stringifies the integer primary key
	id, err := parseUserID("42")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	_, err = parseUserID("")
	assert.Error(t, err)

	_, err = parseUserID("not-a-number")
	assert.Error(t, err)
}
