package gamelink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/caiga/companion/internal/signals"
)

// DefaultTimeout bounds one state fetch or one dispatch.
const DefaultTimeout = 5 * time.Second

// #region state-client

// StateClient polls the game mod for the current session snapshot.
type StateClient struct {
	url        string
	httpClient *http.Client
}

func NewStateClient(url string, timeout time.Duration) *StateClient {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &StateClient{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// Fetch returns the decoded snapshot. Any non-200 status is an error.
func (c *StateClient) Fetch(ctx context.Context) (signals.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return signals.Snapshot{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return signals.Snapshot{}, fmt.Errorf("state request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return signals.Snapshot{}, fmt.Errorf("failed to read state: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return signals.Snapshot{}, fmt.Errorf("state poll status=%d", resp.StatusCode)
	}
	return signals.DecodeSnapshot(body)
}

// #endregion state-client

// #region tip-client

// TipClient posts messages to the in-game overlay.
type TipClient struct {
	url        string
	httpClient *http.Client
}

type tipRequest struct {
	Message string `json:"message"`
}

func NewTipClient(url string, timeout time.Duration) *TipClient {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &TipClient{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// Send posts text. Only a 200 response counts as delivered.
func (c *TipClient) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(tipRequest{Message: text})
	if err != nil {
		return fmt.Errorf("failed to marshal tip: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post tip failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post tip status=%d", resp.StatusCode)
	}
	return nil
}

// #endregion tip-client
