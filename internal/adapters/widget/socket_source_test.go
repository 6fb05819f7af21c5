package widget

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
)

type staticResolver struct {
	url string
	err error
}

func (s staticResolver) Resolve(context.Context, string) (string, error) { return s.url, s.err }

// pushServer upgrades one client and runs push on the server side.
func pushServer(t *testing.T, push func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		push(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func openSource(t *testing.T, url string) *SocketSource {
	t.Helper()
	src := NewSocketSource(Config{ID: "0123456789abcdef", RequestTimeout: time.Second, PingInterval: time.Hour}, staticResolver{url: url}, nil)
	desc, err := src.Prepare(context.Background())
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if desc.Name != "widget 01234567..." {
		t.Fatalf("expected masked widget descriptor, got %+v", desc)
	}
	return src
}

func TestSocketSourceForwardsMessages(t *testing.T) {
	url := pushServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{"heartRate":88}}`))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x01})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{"heartRate":89}}`))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		time.Sleep(50 * time.Millisecond)
	})

	sess, err := openSource(t, url).Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sess.Close()

	var got []string
	timeout := time.After(3 * time.Second)
	for done := false; !done; {
		select {
		case p, ok := <-sess.Payloads():
			if !ok {
				done = true
				break
			}
			if p.Encoding != domain.EncodingJSON || p.ReceivedAt.IsZero() {
				t.Fatalf("unexpected payload %+v", p)
			}
			got = append(got, string(p.Data))
		case <-timeout:
			t.Fatalf("session did not end")
		}
	}

	if len(got) != 2 || !strings.Contains(got[0], "88") || !strings.Contains(got[1], "89") {
		t.Fatalf("expected two text messages in order, got %v", got)
	}
	if !errors.Is(sess.Err(), domain.ErrTransport) {
		t.Fatalf("peer close must surface as transport error, got %v", sess.Err())
	}
}

func TestSocketSourceCleanClose(t *testing.T) {
	hold := make(chan struct{})
	url := pushServer(t, func(conn *websocket.Conn) {
		// read until the client closes
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(hold)
				return
			}
		}
	})

	sess, err := openSource(t, url).Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = sess.Close()

	select {
	case <-hold:
	case <-time.After(3 * time.Second):
		t.Fatalf("server never saw the close")
	}
	if _, ok := <-sess.Payloads(); ok {
		t.Fatalf("payload channel should be closed")
	}
	if sess.Err() != nil {
		t.Fatalf("clean close must report nil, got %v", sess.Err())
	}
}

func TestSocketSourceDialFailure(t *testing.T) {
	src := openSource(t, "ws://127.0.0.1:1/none")
	if _, err := src.Open(context.Background()); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestSocketSourceOpenBeforePrepare(t *testing.T) {
	src := NewSocketSource(Config{ID: "x"}, staticResolver{}, nil)
	if _, err := src.Open(context.Background()); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestSocketSourcePrepareFailure(t *testing.T) {
	src := NewSocketSource(Config{ID: "x"}, staticResolver{err: domain.ErrResolutionFailed}, nil)
	if _, err := src.Prepare(context.Background()); !errors.Is(err, domain.ErrResolutionFailed) {
		t.Fatalf("expected resolution failure, got %v", err)
	}
}
