package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"querymesh/internal/domain"
)

// Client posts call envelopes to agent endpoints. Every call carries a
// bounded timeout; a downstream agent can make a call fail, never hang.
type Client struct {
	httpc   *http.Client
	logger  *slog.Logger
	timeout time.Duration
}

// NewClient builds an envelope client over the shared HTTP client.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpc:   SharedHTTPClient(timeout),
		logger:  logger.With("component", "rpc_client"),
		timeout: timeout,
	}
}

// Call posts one envelope to url and returns the result member. Error
// members come back as *Error values; transport problems are wrapped
// errors. A fresh correlation id is generated when id is nil.
func (c *Client) Call(ctx context.Context, url, method string, params map[string]any, id any) (any, error) {
	if id == nil {
		id = uuid.NewString()
	}
	if params == nil {
		params = map[string]any{}
	}

	reqBody, err := json.Marshal(Request{
		ProtocolVersion: ProtocolVersion,
		Method:          method,
		Params:          params,
		ID:              id,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("cannot build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call %s %s: %w", url, method, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("cannot read response from %s: %w", url, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("call %s %s: unexpected status %d: %s", url, method, httpResp.StatusCode, strings.TrimSpace(string(body)))
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("cannot parse response from %s: %w", url, err)
	}

	c.logger.Debug("call completed", "url", url, "method", method, "duration", time.Since(start), "failed", resp.Error != nil)

	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

// EnvelopeURL builds the canonical endpoint for an agent address. The
// address may already point at the endpoint or just at the agent's base.
func EnvelopeURL(address, agent string) string {
	addr := strings.TrimRight(address, "/")
	if strings.HasSuffix(addr, "/a2a") {
		return addr
	}
	return fmt.Sprintf("%s/agents/%s/a2a", addr, agent)
}

// Caller resolves agents through the registry and calls them by name.
// Discovery misses are reported as errors naming the agent, so callers
// can distinguish "not registered yet" from a failed call.
type Caller struct {
	registry domain.Registry
	client   *Client
}

func NewCaller(registry domain.Registry, client *Client) *Caller {
	return &Caller{registry: registry, client: client}
}

// CallAgent looks the agent up in the registry and posts the envelope to
// its internal address.
func (mc *Caller) CallAgent(ctx context.Context, agent, method string, params map[string]any) (any, error) {
	card, err := mc.registry.GetAgent(agent)
	if err != nil {
		return nil, fmt.Errorf("registry lookup for %s: %w", agent, err)
	}
	if card == nil {
		return nil, fmt.Errorf("agent %q is not registered", agent)
	}
	return mc.client.Call(ctx, EnvelopeURL(card.InternalAddress, agent), method, params, nil)
}
