package node

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/secchiware/secchiware/pkg/node/api"
	"github.com/secchiware/secchiware/pkg/signing"
)

// C2Client is the Node's signed HTTP client for the two C2 calls in the
// registration lifecycle: POST /environments at startup and DELETE
// /environments/{ip}/{port} at shutdown.
type C2Client struct {
	BaseURL string
	KeyID   string
	Secret  []byte
	HTTP    *http.Client
}

// NewC2Client builds a client bound to baseURL (e.g. "http://10.0.0.1:8080"),
// signing requests as keyID with secret.
func NewC2Client(baseURL, keyID string, secret []byte, timeout time.Duration) *C2Client {
	return &C2Client{
		BaseURL: baseURL,
		KeyID:   keyID,
		Secret:  secret,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Register POSTs the node's platform fingerprint to C2 /environments,
// signed. A non-2xx response is returned as an error so the caller can
// fall back to stand-alone mode.
func (c *C2Client) Register(ip string, port int, platform api.PlatformInfo) error {
	body, err := json.Marshal(api.RegisterRequest{IP: ip, Port: port, Platform: platform})
	if err != nil {
		return fmt.Errorf("node: marshal register request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.BaseURL+"/environments", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("node: build register request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	signing.SignHTTPRequest(req, c.KeyID, c.Secret, body, []string{"content-type"})

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("node: register with c2: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("node: c2 rejected registration: status %d", resp.StatusCode)
	}
	return nil
}

// Deregister DELETEs the node's active-node table entry, signed. Called
// best-effort on graceful shutdown; its failure does not block exit.
func (c *C2Client) Deregister(ip string, port int) error {
	url := fmt.Sprintf("%s/environments/%s/%d", c.BaseURL, ip, port)
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("node: build deregister request: %w", err)
	}
	signing.SignHTTPRequest(req, c.KeyID, c.Secret, nil, nil)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("node: deregister from c2: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("node: c2 rejected deregistration: status %d", resp.StatusCode)
	}
	return nil
}
