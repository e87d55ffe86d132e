package signing

import (
	"net/http"
	"strings"
)

// ValuesFromHTTPRequest adapts an inbound *http.Request into the
// Verifier's Request type, folding the Host field in (net/http strips
// the Host header into Request.Host rather than leaving it in
// req.Header) so "host" resolves like any other signed header.
func ValuesFromHTTPRequest(r *http.Request) Values {
	values := make(Values, len(r.Header)+1)
	for name, vals := range r.Header {
		if len(vals) == 0 {
			continue
		}
		values[strings.ToLower(name)] = vals[0]
	}
	values["host"] = r.Host
	return values
}
