package vk

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePKCECodes(t *testing.T) {
	codes, err := GeneratePKCECodes()
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(codes.CodeVerifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), codes.CodeChallenge)
	assert.GreaterOrEqual(t, len(codes.CodeVerifier), 43)
	assert.NotEmpty(t, codes.State)

	other, err := GeneratePKCECodes()
	require.NoError(t, err)
	assert.NotEqual(t, codes.CodeVerifier, other.CodeVerifier)
	assert.NotEqual(t, codes.State, other.State)
}
