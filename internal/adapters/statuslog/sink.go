// Package statuslog renders status events as structured log entries.
package statuslog

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

type Sink struct {
	log logrus.FieldLogger
}

func New(log logrus.FieldLogger) *Sink {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sink{log: log}
}

func (s *Sink) Name() string { return "statuslog" }

func (s *Sink) WriteBatch(events []domain.StatusEvent) error {
	for _, ev := range events {
		s.write(ev)
	}
	return nil
}

func (s *Sink) write(ev domain.StatusEvent) {
	fields := logrus.Fields{
		"event": string(ev.Kind),
		"state": ev.State.String(),
	}
	if ev.SessionID != "" {
		fields["session"] = ev.SessionID
	}
	if ev.Triple != nil {
		fields["bpm"] = ev.Triple.IntValue
		fields["float"] = fmt.Sprintf("%.2f", ev.Triple.FloatValue)
	}
	if ev.Device != nil {
		fields["device"] = ev.Device.Name
		fields["address"] = ev.Device.Address
	}
	if ev.Kind == domain.EventConnectivity {
		fields["connected"] = ev.Connected
	}
	entry := s.log.WithFields(fields)
	if !ev.At.IsZero() {
		entry = entry.WithTime(ev.At)
	}

	switch ev.Kind {
	case domain.EventDiscoveryFailed, domain.EventResolutionFailed, domain.EventTransportError, domain.EventOutputError:
		entry.WithError(ev.Err).Error(message(ev))
	case domain.EventMalformedPayload, domain.EventStaleStream:
		entry.WithError(ev.Err).Warn(message(ev))
	case domain.EventTelemetry:
		entry.Debug(message(ev))
	default:
		entry.Info(message(ev))
	}
}

func message(ev domain.StatusEvent) string {
	if ev.Message != "" {
		return ev.Message
	}
	return string(ev.Kind)
}

var _ ports.EventSink = (*Sink)(nil)
