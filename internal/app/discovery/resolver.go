// Package discovery finds the BLE peripheral to stream from.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

// PassReport describes one finished scan pass.
type PassReport struct {
	Pass    int
	Seen    int
	ScanErr error
}

// Resolver runs bounded scan passes until a device name contains the fragment.
type Resolver struct {
	Scanner ports.Scanner
	Policy  domain.RetryPolicy
	Window  time.Duration

	// OnPass is called after every pass that did not match.
	OnPass func(PassReport)
}

func NewResolver(scanner ports.Scanner, window time.Duration, policy domain.RetryPolicy) *Resolver {
	return &Resolver{Scanner: scanner, Policy: policy, Window: window}
}

// Resolve returns the first device, in discovery order, whose advertised name
// contains fragment (case-sensitive). It gives up with ErrDiscoveryFailed after
// Policy.Attempts passes and returns ctx.Err() when cancelled.
func (r *Resolver) Resolve(ctx context.Context, fragment string) (domain.DeviceDescriptor, error) {
	attempts := r.Policy.Attempts
	if attempts <= 0 {
		attempts = domain.DiscoveryRetry.Attempts
	}

	for pass := 1; pass <= attempts; pass++ {
		if err := ctx.Err(); err != nil {
			return domain.DeviceDescriptor{}, err
		}

		devices, err := r.Scanner.Scan(ctx, r.Window)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.DeviceDescriptor{}, ctxErr
		}
		if err == nil {
			if d, ok := Match(devices, fragment); ok {
				return d, nil
			}
		}
		if r.OnPass != nil {
			r.OnPass(PassReport{Pass: pass, Seen: len(devices), ScanErr: err})
		}

		if pass < attempts {
			if err := sleep(ctx, r.Policy.Delay); err != nil {
				return domain.DeviceDescriptor{}, err
			}
		}
	}
	return domain.DeviceDescriptor{}, fmt.Errorf("%w: no device name contains %q after %d passes", domain.ErrDiscoveryFailed, fragment, attempts)
}

// Match picks the first named device containing fragment.
func Match(devices []domain.DeviceDescriptor, fragment string) (domain.DeviceDescriptor, bool) {
	for _, d := range devices {
		if d.Name == "" {
			continue
		}
		if strings.Contains(d.Name, fragment) {
			return d, true
		}
	}
	return domain.DeviceDescriptor{}, false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
