package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

const maxDirectoryResponse = 1 << 20

// DirectoryResolver looks up a widget's push-socket URL with a JSON-RPC
// getWidget call.
type DirectoryResolver struct {
	url     string
	client  *http.Client
	timeout time.Duration
	now     func() time.Time
}

func NewDirectoryResolver(url string, timeout time.Duration, client *http.Client) *DirectoryResolver {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DirectoryResolver{url: url, client: client, timeout: timeout, now: time.Now}
}

type rpcRequest struct {
	ID      int64          `json:"id"`
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type rpcResponse struct {
	Result *struct {
		RamielURL string `json:"ramielUrl"`
	} `json:"result"`
	Error json.RawMessage `json:"error"`
}

// Resolve fails with ErrResolutionFailed on transport errors, non-200
// statuses, an RPC error member or a missing ramielUrl.
func (r *DirectoryResolver) Resolve(ctx context.Context, widgetID string) (string, error) {
	body, err := json.Marshal(rpcRequest{
		ID:      r.now().UnixMilli(),
		JSONRPC: "2.0",
		Method:  "getWidget",
		Params:  map[string]any{"widgetId": widgetID},
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", domain.ErrResolutionFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", domain.ErrResolutionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrResolutionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: directory returned status %d", domain.ErrResolutionFailed, resp.StatusCode)
	}

	var out rpcResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDirectoryResponse)).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrResolutionFailed, err)
	}
	if len(out.Error) > 0 && string(out.Error) != "null" {
		return "", fmt.Errorf("%w: rpc error %s", domain.ErrResolutionFailed, out.Error)
	}
	if out.Result == nil || out.Result.RamielURL == "" {
		return "", fmt.Errorf("%w: response has no ramielUrl", domain.ErrResolutionFailed)
	}
	return out.Result.RamielURL, nil
}

// MaskID keeps the first 8 characters of a widget id for logs and events.
func MaskID(id string) string {
	r := []rune(id)
	if len(r) <= 8 {
		return id
	}
	return string(r[:8]) + "..."
}

var _ ports.WidgetResolver = (*DirectoryResolver)(nil)
