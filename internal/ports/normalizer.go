package ports

import "github.com/xueayi/HeartRate-to-VRC/internal/domain"

// Normalizer converts a transport payload into the canonical Sample.
type Normalizer interface {
	Normalize(p domain.RawPayload) (domain.Sample, error)
}
