package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultEndpoint is the Expo push relay.
const DefaultEndpoint = "https://exp.host/--/api/v2/push/send"

// ErrDeviceNotRegistered reports a token the relay no longer accepts.
var ErrDeviceNotRegistered = errors.New("device not registered")

// Message is a single notification addressed to one device token.
type Message struct {
	To    string            `json:"to"`
	Title string            `json:"title,omitempty"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound,omitempty"`
}

type ticket struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message"`
	Details struct {
		Error string `json:"error"`
	} `json:"details"`
}

type sendResponse struct {
	Data   []ticket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Client posts messages to the push relay. A successful Send only means the relay accepted them.
type Client struct {
	endpoint    string
	accessToken string
	http        *http.Client
}

// NewClient constructs a relay client. accessToken is optional.
func NewClient(endpoint, accessToken string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{endpoint: endpoint, accessToken: accessToken, http: &http.Client{Timeout: timeout}}
}

// Send submits messages in one request and returns the relay ticket ids.
func (c *Client) Send(ctx context.Context, messages ...Message) ([]string, error) {
	if len(messages) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encode push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send push: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read push response: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("push relay status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded sendResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		return nil, fmt.Errorf("push relay rejected request: %s", decoded.Errors[0].Message)
	}

	ids := make([]string, 0, len(decoded.Data))
	for _, t := range decoded.Data {
		if t.Status != "ok" {
			if t.Details.Error == "DeviceNotRegistered" {
				return ids, ErrDeviceNotRegistered
			}
			return ids, fmt.Errorf("push ticket error: %s", t.Message)
		}
		ids = append(ids, t.ID)
	}
	return ids, nil
}
