// Package signing implements the secchiware-hmac-256 request-signing
// scheme of spec.md §4.1: canonical-string construction, HMAC-SHA256
// signing/verification, Authorization header parsing, body digests,
// and the replay/freshness checks a verifier must enforce.
package signing

import "time"

// Scheme is the Authorization header scheme name.
const Scheme = "SECCHIWARE-HMAC-256"

// Identity names the three principal classes that sign requests.
type Identity string

const (
	IdentityClient Identity = "Client"
	IdentityC2     Identity = "C2"
	IdentityNode   Identity = "Node"
)

// DefaultSkewWindow is the recommended freshness tolerance from
// spec.md §4.1 ("recommended ±5 min").
const DefaultSkewWindow = 5 * time.Minute

// Header is the parsed form of an Authorization header value:
//
//	SECCHIWARE-HMAC-256 keyId=<id>,[headers=<h1;h2;...>,]signature=<b64>
type Header struct {
	KeyID     string
	Headers   []string
	Signature []byte
}
