// Package normalize turns transport payloads into canonical heart-rate samples.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

// flagsUint16 is bit 0 of the heart-rate measurement flags byte.
const flagsUint16 = 0x01

type SampleNormalizer struct {
	now func() time.Time
}

func New() *SampleNormalizer {
	return &SampleNormalizer{now: time.Now}
}

// NewWithClock is used by tests that need deterministic ObservedAt values.
func NewWithClock(now func() time.Time) *SampleNormalizer {
	return &SampleNormalizer{now: now}
}

func (n *SampleNormalizer) Normalize(p domain.RawPayload) (domain.Sample, error) {
	var (
		raw int
		err error
	)
	switch p.Encoding {
	case domain.EncodingGATT:
		raw, err = parseGATT(p.Data)
	case domain.EncodingJSON:
		raw, err = parseWidget(p.Data)
	default:
		err = fmt.Errorf("%w: encoding %s", domain.ErrMalformedPayload, p.Encoding)
	}
	if err != nil {
		return domain.Sample{}, err
	}

	at := p.ReceivedAt
	if at.IsZero() {
		at = n.now()
	}
	return domain.Sample{RawValue: raw, ObservedAt: at}, nil
}

func parseGATT(data []byte) (int, error) {
	if len(data) < 2 {
		return 0, fmt.Errorf("%w: gatt payload of %d bytes", domain.ErrMalformedPayload, len(data))
	}
	if data[0]&flagsUint16 != 0 {
		return 0, domain.ErrUnsupportedEncoding
	}
	return int(data[1]), nil
}

type widgetMessage struct {
	Data *struct {
		HeartRate *json.Number `json:"heartRate"`
	} `json:"data"`
}

func parseWidget(data []byte) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var msg widgetMessage
	if err := dec.Decode(&msg); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	if msg.Data == nil || msg.Data.HeartRate == nil {
		return 0, fmt.Errorf("%w: heartRate field absent", domain.ErrMalformedPayload)
	}
	v, err := msg.Data.HeartRate.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: heartRate %q is not an integer", domain.ErrMalformedPayload, msg.Data.HeartRate.String())
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: heartRate %d not positive", domain.ErrMalformedPayload, v)
	}
	return int(v), nil
}

var _ ports.Normalizer = (*SampleNormalizer)(nil)
