package gameservers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client talks to the hosting panel's HTTP API.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient creates a panel client for the given base URL.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Instance is one server instance as reported by the panel.
type Instance struct {
	InstanceID        string            `json:"InstanceID"`
	InstanceName      string            `json:"InstanceName"`
	FriendlyName      string            `json:"FriendlyName"`
	Module            string            `json:"Module"`
	ModuleDisplayName string            `json:"ModuleDisplayName"`
	IP                string            `json:"IP"`
	Port              int               `json:"Port"`
	Running           bool              `json:"Running"`
	AppState          int               `json:"AppState"`
	Metrics           map[string]Metric `json:"Metrics"`
}

// Metric is one named metric value attached to an instance.
type Metric struct {
	RawValue float64 `json:"RawValue"`
}

// CPUUsage returns the instance CPU usage percentage.
func (i Instance) CPUUsage() float64 {
	return i.Metrics["CPU Usage"].RawValue
}

// MemoryUsageMB returns the instance memory usage in megabytes.
func (i Instance) MemoryUsageMB() float64 {
	return i.Metrics["Memory Usage"].RawValue
}

// ActiveUsers returns the instance player count.
func (i Instance) ActiveUsers() int {
	return int(i.Metrics["Active Users"].RawValue)
}

type loginResponse struct {
	Success bool `json:"success"`
}

// target is one ADS controller entry wrapping its instances.
type target struct {
	AvailableInstances []Instance `json:"AvailableInstances"`
}

// Login authenticates against the panel and returns the bearer token the
// panel hands back in the Authorization response header.
func (c *Client) Login(ctx context.Context) (string, error) {
	payload := map[string]any{
		"username":   c.username,
		"password":   c.password,
		"token":      "",
		"rememberMe": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/API/Core/Login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("panel login failed: %w", err)
	}
	defer resp.Body.Close()

	var login loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	if !login.Success {
		return "", fmt.Errorf("panel login rejected for user %s", c.username)
	}

	token := strings.TrimPrefix(resp.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		return "", fmt.Errorf("panel login returned no token")
	}
	return token, nil
}

// Instances lists every server instance across all controller targets.
func (c *Client) Instances(ctx context.Context, token string) ([]Instance, error) {
	body, err := json.Marshal(map[string]any{"ForceIncludeSelf": false})
	if err != nil {
		return nil, fmt.Errorf("failed to encode instances payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/API/ADSModule/GetInstances", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build instances request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instances: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("instances request returned status %d", resp.StatusCode)
	}

	var targets []target
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, fmt.Errorf("failed to decode instances response: %w", err)
	}

	var instances []Instance
	for _, t := range targets {
		instances = append(instances, t.AvailableInstances...)
	}
	return instances, nil
}
