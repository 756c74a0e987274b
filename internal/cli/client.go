package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coproc-network/coproc/internal/daemon"
)

// apiClient is a thin HTTP client for a running daemon. Non-serve commands
// go through it rather than opening the database directly.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newClient() (*apiClient, error) {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return nil, err
	}
	if hostFlag != "" {
		cfg.API.Host = hostFlag
	}
	if portFlag > 0 {
		cfg.API.Port = portFlag
	}
	return &apiClient{
		baseURL: fmt.Sprintf("http://%s:%d", cfg.API.Host, cfg.API.Port),
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

var (
	hostFlag string
	portFlag int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&hostFlag, "api-host", "", "Daemon API host (overrides config)")
	rootCmd.PersistentFlags().IntVar(&portFlag, "api-port", 0, "Daemon API port (overrides config)")
}

// get issues a GET and decodes the JSON response into out.
func (c *apiClient) get(path string, out interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

// post issues a POST with a JSON body and decodes the response into out.
func (c *apiClient) post(path string, body, out interface{}) error {
	return c.postWithAuth(path, "", body, out)
}

// postWithAuth issues a POST with an optional bearer token.
func (c *apiClient) postWithAuth(path, token string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%s", apiErr.Error.Message)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
