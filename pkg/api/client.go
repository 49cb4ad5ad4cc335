package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a simple HTTP client for the Handler surface, generalized
// from the teacher's pkg/api/client.go. It does not itself retry against
// multiple addresses; callers combine it with pkg/membership to follow
// not-leader redirects.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a Client talking to baseURL (e.g. "http://host:port").
func NewClient(baseURL string) *Client {
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: &http.Client{Timeout: 5 * time.Second}}
}

// Get fetches the value for key.
func (c *Client) Get(key string) (string, error) {
	resp, err := c.http.Get(c.baseURL + "/kv/" + key)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("api: get %s: %s: %s", key, resp.Status, body)
	}
	var out struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Value, nil
}

// Set writes key=value.
func (c *Client) Set(key, value string) error {
	body, _ := json.Marshal(map[string]string{"value": value})
	req, err := http.NewRequest(http.MethodPut, c.baseURL+"/kv/"+key, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api: set %s: %s: %s", key, resp.Status, b)
	}
	return nil
}

// Delete removes key.
func (c *Client) Delete(key string) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/kv/"+key, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api: delete %s: %s: %s", key, resp.Status, b)
	}
	return nil
}
