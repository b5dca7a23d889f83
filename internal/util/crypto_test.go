package util

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), token)

	other, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestHashToken(t *testing.T) {
	hash := HashToken("some-token")
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashToken("some-token"))
	assert.NotEqual(t, hash, HashToken("other-token"))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, CheckPasswordHash("correct horse battery staple", hash))
	assert.False(t, CheckPasswordHash("wrong password", hash))
}

func TestGenerateDigits(t *testing.T) {
	pin := GenerateDigits(10)
	assert.Regexp(t, regexp.MustCompile(`^[0-9]{10}$`), pin)
}

func TestGenerateCode(t *testing.T) {
	alphabet := "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	code := GenerateCode(alphabet, 8)
	assert.Len(t, code, 8)
	for _, c := range code {
		assert.Contains(t, alphabet, string(c))
	}
}

func TestMaskCode(t *testing.T) {
	assert.Equal(t, "ABCD****", MaskCode("ABCD2345"))
	assert.Equal(t, "****", MaskCode("AB"))
	assert.Equal(t, "****", MaskCode(""))
}
