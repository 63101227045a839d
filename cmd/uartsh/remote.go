package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	uartlink "github.com/banshee-data/uartlink"
	"github.com/banshee-data/uartlink/internal/httputil"
)

// remoteDaemon sends frames through a running uartmon instance. Reads stay
// with the daemon; only the send half of the link is reachable remotely.
type remoteDaemon struct {
	client  httputil.HTTPClient
	baseURL string
}

func newRemoteDaemon(client httputil.HTTPClient, baseURL string) *remoteDaemon {
	return &remoteDaemon{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// daemonStatus is the daemon's /api/config answer, reduced to what the
// shell reports.
type daemonStatus struct {
	Link    uartlink.Config `json:"link"`
	DataLen int             `json:"data_len"`
}

// Status fetches the configuration the daemon is running the link with.
func (r *remoteDaemon) Status() (daemonStatus, error) {
	var st daemonStatus
	resp, err := r.client.Get(r.baseURL + "/api/config")
	if err != nil {
		return st, fmt.Errorf("request to %s failed: %w", r.baseURL+"/api/config", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("daemon sent a malformed config: %w", err)
	}
	return st, nil
}

func (r *remoteDaemon) SendCommand(opcode byte) error {
	return r.postForm("/command", url.Values{"opcode": {fmt.Sprintf("%#02x", opcode)}})
}

func (r *remoteDaemon) SendData(payload []byte) error {
	return r.postForm("/data", url.Values{"payload": {hex.EncodeToString(payload)}})
}

func (r *remoteDaemon) postForm(path string, form url.Values) error {
	resp, err := r.client.Post(r.baseURL+path, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", r.baseURL+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	// The daemon reports failures as {"error": "..."}.
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("daemon returned %d", resp.StatusCode)
}
