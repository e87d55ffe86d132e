package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuthorizationRoundTrip(t *testing.T) {
	h := &Header{
		KeyID:     "node-1",
		Headers:   []string{"host", "timestamp", "digest"},
		Signature: []byte{1, 2, 3, 4},
	}

	formatted := FormatAuthorization(h)
	parsed, err := ParseAuthorization(formatted)
	require.NoError(t, err)

	assert.Equal(t, h.KeyID, parsed.KeyID)
	assert.Equal(t, h.Headers, parsed.Headers)
	assert.Equal(t, h.Signature, parsed.Signature)
}

func TestParseAuthorizationWithoutHeadersParam(t *testing.T) {
	parsed, err := ParseAuthorization("SECCHIWARE-HMAC-256 keyId=C2,signature=AQIDBA==")
	require.NoError(t, err)
	assert.Equal(t, "C2", parsed.KeyID)
	assert.Nil(t, parsed.Headers)
}

func TestParseAuthorizationRejectsWrongScheme(t *testing.T) {
	_, err := ParseAuthorization("Bearer abc123")
	assert.Error(t, err)
}

func TestParseAuthorizationRejectsMissingFields(t *testing.T) {
	_, err := ParseAuthorization("SECCHIWARE-HMAC-256 headers=host")
	assert.Error(t, err)

	_, err = ParseAuthorization("SECCHIWARE-HMAC-256 keyId=Node")
	assert.Error(t, err)
}

func TestParseAuthorizationRejectsMalformedSignature(t *testing.T) {
	_, err := ParseAuthorization("SECCHIWARE-HMAC-256 keyId=Node,signature=not-base64!!")
	assert.Error(t, err)
}
