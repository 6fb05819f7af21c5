// Package widget streams heart-rate messages from a broadcast widget: the
// widget id is resolved to a socket URL once, then a websocket is held open.
package widget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"

	"github.com/xueayi/HeartRate-to-VRC/internal/adapters/feed"
	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

const (
	readLimit    = 64 << 10
	pingTimeout  = 5 * time.Second
	socketBuffer = 16
)

type Config struct {
	ID             string
	RequestTimeout time.Duration
	PingInterval   time.Duration
}

type SocketSource struct {
	cfg      Config
	resolver ports.WidgetResolver
	log      logrus.FieldLogger

	url string
}

func NewSocketSource(cfg Config, resolver ports.WidgetResolver, log logrus.FieldLogger) *SocketSource {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 15 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &SocketSource{
		cfg:      cfg,
		resolver: resolver,
		log:      log.WithFields(logrus.Fields{"transport": "widget", "widget": MaskID(cfg.ID)}),
	}
}

func (s *SocketSource) Kind() domain.TransportKind { return domain.TransportWidget }

// Prepare resolves the socket URL once. The descriptor only carries the
// masked widget id.
func (s *SocketSource) Prepare(ctx context.Context) (domain.DeviceDescriptor, error) {
	url, err := s.resolver.Resolve(ctx, s.cfg.ID)
	if err != nil {
		return domain.DeviceDescriptor{}, err
	}
	s.url = url
	s.log.Info("widget resolved")
	return domain.DeviceDescriptor{Name: "widget " + MaskID(s.cfg.ID)}, nil
}

func (s *SocketSource) Open(ctx context.Context) (ports.Session, error) {
	if s.url == "" {
		return nil, fmt.Errorf("%w: widget not resolved", domain.ErrTransport)
	}

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: websocket dial: %v", domain.ErrTransport, err)
	}
	conn.SetReadLimit(readLimit)

	// the session outlives Open's ctx; Close cancels it
	runCtx, stop := context.WithCancel(context.Background())
	sess := feed.New(socketBuffer, func() error {
		defer stop()
		return conn.Close(websocket.StatusNormalClosure, "closing")
	})

	go s.readLoop(runCtx, conn, sess)
	go s.pingLoop(runCtx, conn, sess)
	s.log.Info("websocket connected")
	return sess, nil
}

func (s *SocketSource) readLoop(ctx context.Context, conn *websocket.Conn, sess *feed.Session) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				sess.Fail(fmt.Errorf("%w: socket closed by peer (%d)", domain.ErrTransport, status))
				return
			}
			sess.Fail(fmt.Errorf("%w: websocket read: %v", domain.ErrTransport, err))
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		if !sess.Push(domain.RawPayload{Encoding: domain.EncodingJSON, Data: data, ReceivedAt: time.Now()}) {
			return
		}
	}
}

func (s *SocketSource) pingLoop(ctx context.Context, conn *websocket.Conn, sess *feed.Session) {
	t := time.NewTicker(s.cfg.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
				sess.Fail(fmt.Errorf("%w: ping: %v", domain.ErrTransport, err))
				return
			}
		}
	}
}

var _ ports.TransportSource = (*SocketSource)(nil)
