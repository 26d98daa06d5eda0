package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Sup3rSecret")
	require.NoError(t, err)
	assert.NotEqual(t, "Sup3rSecret", hash)
	assert.True(t, CheckPassword(hash, "Sup3rSecret"))
	assert.False(t, CheckPassword(hash, "sup3rsecret"))
	assert.False(t, CheckPassword(hash, ""))
}
