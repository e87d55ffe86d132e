package signing

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// ParseAuthorization parses an Authorization header value of the form
//
//	SECCHIWARE-HMAC-256 keyId=<id>,[headers=<h1;h2;...>,]signature=<b64>
//
// into its component parts. headers= is optional; when absent, Header
// has a nil Headers slice, and Verifier rejects it as malformed unless
// its RequiredHeaders list is empty.
func ParseAuthorization(value string) (*Header, error) {
	value = strings.TrimSpace(value)

	schemeEnd := strings.IndexByte(value, ' ')
	if schemeEnd == -1 {
		return nil, fmt.Errorf("signing: malformed authorization header: missing scheme")
	}
	scheme := value[:schemeEnd]
	if scheme != Scheme {
		return nil, fmt.Errorf("signing: unsupported authorization scheme %q", scheme)
	}

	h := &Header{}
	var sawKeyID, sawSignature bool

	for _, part := range strings.Split(value[schemeEnd+1:], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("signing: malformed authorization parameter %q", part)
		}
		key := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])

		switch key {
		case "keyId":
			h.KeyID = val
			sawKeyID = true
		case "headers":
			if val != "" {
				h.Headers = strings.Split(val, ";")
			}
		case "signature":
			sig, err := base64.StdEncoding.DecodeString(val)
			if err != nil {
				return nil, fmt.Errorf("signing: malformed signature encoding: %w", err)
			}
			h.Signature = sig
			sawSignature = true
		default:
			return nil, fmt.Errorf("signing: unknown authorization parameter %q", key)
		}
	}

	if !sawKeyID || !sawSignature {
		return nil, fmt.Errorf("signing: authorization header missing keyId or signature")
	}

	return h, nil
}

// FormatAuthorization renders h back into an Authorization header value.
func FormatAuthorization(h *Header) string {
	var b strings.Builder
	b.WriteString(Scheme)
	b.WriteString(" keyId=")
	b.WriteString(h.KeyID)

	if len(h.Headers) > 0 {
		b.WriteString(",headers=")
		b.WriteString(strings.Join(h.Headers, ";"))
	}

	b.WriteString(",signature=")
	b.WriteString(base64.StdEncoding.EncodeToString(h.Signature))
	return b.String()
}
