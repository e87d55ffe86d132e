package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigestRoundTrip(t *testing.T) {
	body := []byte(`["p1"]`)
	header := Digest(body)

	assert.True(t, VerifyDigest(header, body))
	assert.False(t, VerifyDigest(header, []byte(`["p2"]`)))
}

func TestVerifyDigestRejectsMalformedHeader(t *testing.T) {
	assert.False(t, VerifyDigest("md5=abcd", []byte("x")))
	assert.False(t, VerifyDigest("sha-256=not-base64!!", []byte("x")))
}
