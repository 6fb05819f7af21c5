package widget

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
)

func directory(t *testing.T, status int, body string, seen *rpcRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveReturnsSocketURL(t *testing.T) {
	var req rpcRequest
	srv := directory(t, http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"ramielUrl":"wss://ramiel.example/socket?token=x"}}`, &req)

	r := NewDirectoryResolver(srv.URL, time.Second, srv.Client())
	r.now = func() time.Time { return time.UnixMilli(1714560000000) }

	url, err := r.Resolve(context.Background(), "a1b2c3d4-e5f6")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if url != "wss://ramiel.example/socket?token=x" {
		t.Fatalf("unexpected url %s", url)
	}
	if req.JSONRPC != "2.0" || req.Method != "getWidget" || req.ID != 1714560000000 {
		t.Fatalf("unexpected rpc envelope %+v", req)
	}
	if req.Params["widgetId"] != "a1b2c3d4-e5f6" {
		t.Fatalf("unexpected params %+v", req.Params)
	}
}

func TestResolveFailures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"not found":   {http.StatusNotFound, `{}`},
		"rpc error":   {http.StatusOK, `{"error":{"code":-32000,"message":"widget not found"}}`},
		"missing url": {http.StatusOK, `{"result":{}}`},
		"no result":   {http.StatusOK, `{}`},
		"garbage":     {http.StatusOK, `<html>`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := directory(t, tc.status, tc.body, nil)
			_, err := NewDirectoryResolver(srv.URL, time.Second, srv.Client()).Resolve(context.Background(), "id")
			if !errors.Is(err, domain.ErrResolutionFailed) {
				t.Fatalf("expected resolution failure, got %v", err)
			}
		})
	}
}

func TestResolveNullErrorMemberIsSuccess(t *testing.T) {
	srv := directory(t, http.StatusOK, `{"error":null,"result":{"ramielUrl":"wss://x"}}`, nil)
	if _, err := NewDirectoryResolver(srv.URL, time.Second, srv.Client()).Resolve(context.Background(), "id"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
}

func TestResolveTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewDirectoryResolver(srv.URL, 20*time.Millisecond, srv.Client()).Resolve(context.Background(), "id")
	if !errors.Is(err, domain.ErrResolutionFailed) {
		t.Fatalf("expected resolution failure on timeout, got %v", err)
	}
}

func TestMaskID(t *testing.T) {
	if got := MaskID("0123456789abcdef"); got != "01234567..." {
		t.Fatalf("unexpected mask %q", got)
	}
	if got := MaskID("short"); got != "short" {
		t.Fatalf("short ids stay as is, got %q", got)
	}
}
