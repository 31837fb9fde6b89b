package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Hour)

	token, expiresAt, err := signer.Generate("enroll-1", "certificates/enroll-1.pdf")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	enrollmentID, relPath, parsedExp, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "enroll-1", enrollmentID)
	assert.Equal(t, "certificates/enroll-1.pdf", relPath)
	assert.Equal(t, expiresAt.Unix(), parsedExp.Unix())
}

func TestSignedURLTamperedPath(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Hour)

	token, _, err := signer.Generate("enroll-1", "certificates/enroll-1.pdf")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "enroll-2"
	_, _, _, err = signer.Parse(strings.Join(parts, "."))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature")
}

func TestSignedURLWrongSecret(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Hour)
	other := NewSignedURLSigner("another-secret", time.Hour)

	token, _, err := signer.Generate("enroll-1", "certificates/enroll-1.pdf")
	require.NoError(t, err)

	_, _, _, err = other.Parse(token)
	require.Error(t, err)
}

func TestSignedURLExpired(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", -time.Minute)
	// The constructor rejects non-positive TTLs, so force one for the test.
	signer.ttl = -time.Minute

	token, _, err := signer.Generate("enroll-1", "certificates/enroll-1.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestSignedURLRejectsGarbage(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Hour)

	_, _, _, err := signer.Parse("not-a-token")
	require.Error(t, err)
}

func TestGenerateRequiresSecret(t *testing.T) {
	signer := NewSignedURLSigner("", time.Hour)

	_, _, err := signer.Generate("enroll-1", "certificates/enroll-1.pdf")
	require.Error(t, err)
}
