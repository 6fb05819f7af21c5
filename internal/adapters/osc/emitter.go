// Package osc sends heart-rate triples to an OSC receiver over UDP.
package osc

import (
	"fmt"
	"math"

	"github.com/hypebeast/go-osc/osc"

	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

// Mapping converts samples to triples and names the three OSC addresses.
type Mapping struct {
	AddrBool  string
	AddrInt   string
	AddrFloat string

	Low  int
	High int
	// Legacy bounds the float by Low instead of 1.0.
	Legacy bool
}

// Ceiling is the upper bound applied to raw/high.
func (m Mapping) Ceiling() float64 {
	if m.Legacy {
		return float64(m.Low)
	}
	return 1.0
}

// Triple computes the presence=true triple for s.
func (m Mapping) Triple(s domain.Sample) domain.OscTriple {
	ratio := 0.0
	if m.High > 0 {
		ratio = float64(s.RawValue) / float64(m.High)
	}
	return domain.OscTriple{
		Presence:   true,
		IntValue:   s.RawValue,
		FloatValue: math.Min(ratio, m.Ceiling()),
	}
}

type sender interface {
	Send(packet osc.Packet) error
}

// Emitter writes each triple as three messages: bool, int, float.
type Emitter struct {
	client  sender
	mapping Mapping
}

func NewEmitter(host string, port int, m Mapping) *Emitter {
	return &Emitter{client: osc.NewClient(host, port), mapping: m}
}

func newEmitterWithSender(s sender, m Mapping) *Emitter {
	return &Emitter{client: s, mapping: m}
}

func (e *Emitter) Mapping() Mapping { return e.mapping }

func (e *Emitter) Emit(s domain.Sample) (domain.OscTriple, error) {
	tr := e.mapping.Triple(s)
	if err := e.send(e.mapping.AddrBool, tr.Presence); err != nil {
		return tr, err
	}
	if err := e.send(e.mapping.AddrInt, int32(tr.IntValue)); err != nil {
		return tr, err
	}
	if err := e.send(e.mapping.AddrFloat, float32(tr.FloatValue)); err != nil {
		return tr, err
	}
	return tr, nil
}

// EmitAbsent sends presence=false with no int/float companion.
func (e *Emitter) EmitAbsent() error {
	return e.send(e.mapping.AddrBool, false)
}

func (e *Emitter) send(addr string, arg any) error {
	if err := e.client.Send(osc.NewMessage(addr, arg)); err != nil {
		return fmt.Errorf("osc send %s: %w", addr, err)
	}
	return nil
}

var _ ports.Emitter = (*Emitter)(nil)
