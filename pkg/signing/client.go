package signing

import (
	"net/http"
	"time"
)

// SignHTTPRequest signs req in place: it sets Digest (if body is
// non-empty), Timestamp, and Authorization headers. headers names the
// additional headers (beyond host/timestamp/digest) to include in the
// signed set, in the order they should appear in the canonical string.
// Host and Timestamp are always placed first, Digest immediately after
// when a body is present.
func SignHTTPRequest(req *http.Request, keyID string, secret []byte, body []byte, headers []string) {
	now := time.Now().UTC().Format(time.RFC3339)
	req.Header.Set("Timestamp", now)
	req.Header.Set("Host", req.Host)

	signed := []string{"host", "timestamp"}
	if len(body) > 0 {
		req.Header.Set("Digest", Digest(body))
		signed = append(signed, "digest")
	}
	signed = append(signed, headers...)

	fields := make([]HeaderField, 0, len(signed))
	for _, name := range signed {
		value := req.Header.Get(name)
		if name == "host" {
			value = req.Host
		}
		fields = append(fields, HeaderField{Name: name, Value: value})
	}

	canonical := CanonicalString(req.Method, req.URL.Path, req.URL.RawQuery, fields)
	sig := Sign(secret, canonical)

	req.Header.Set("Authorization", FormatAuthorization(&Header{
		KeyID:     keyID,
		Headers:   signed,
		Signature: sig,
	}))
}
