package ports

import "github.com/xueayi/HeartRate-to-VRC/internal/domain"

// Emitter transmits OSC triples for accepted samples.
type Emitter interface {
	Emit(s domain.Sample) (domain.OscTriple, error)
	EmitAbsent() error
}

// SidecarWriter overwrites an external file with the latest raw value.
type SidecarWriter interface {
	WriteValue(raw int) error
}
