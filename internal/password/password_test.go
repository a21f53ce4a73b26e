package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveAndVerify(t *testing.T) {
	salt, hash, err := Derive("correct horse")
	require.NoError(t, err)
	assert.Len(t, salt, saltLen*2)
	assert.Len(t, hash, keyLen*2)

	assert.True(t, Verify(salt, hash, "correct horse"))
	assert.False(t, Verify(salt, hash, "battery staple"))
	assert.False(t, Verify(salt, hash, ""))
}

func TestDeriveUsesFreshSalt(t *testing.T) {
	salt1, hash1, err := Derive("same password")
	require.NoError(t, err)
	salt2, hash2, err := Derive("same password")
	require.NoError(t, err)

	assert.NotEqual(t, salt1, salt2)
	assert.NotEqual(t, hash1, hash2)
}

func TestVerifyMalformedStoredMaterial(t *testing.T) {
	salt, hash, err := Derive("pw")
	require.NoError(t, err)

	assert.False(t, Verify("not hex", hash, "pw"))
	assert.False(t, Verify(salt, "not hex", "pw"))
	assert.False(t, Verify("", "", "pw"))
}
