package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
)

type scriptedScanner struct {
	passes [][]domain.DeviceDescriptor
	errs   []error
	calls  int
}

func (s *scriptedScanner) Scan(ctx context.Context, window time.Duration) ([]domain.DeviceDescriptor, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i < len(s.passes) {
		return s.passes[i], err
	}
	return nil, err
}

var quick = domain.RetryPolicy{Delay: time.Millisecond, Attempts: 5}

func TestResolveGivesUpAfterFivePasses(t *testing.T) {
	scanner := &scriptedScanner{passes: [][]domain.DeviceDescriptor{
		{{Name: "Speaker", Address: "AA"}},
		{{Name: "", Address: "BB"}},
	}}
	var reports []PassReport
	r := NewResolver(scanner, time.Millisecond, quick)
	r.OnPass = func(p PassReport) { reports = append(reports, p) }

	_, err := r.Resolve(context.Background(), "Band")
	if !errors.Is(err, domain.ErrDiscoveryFailed) {
		t.Fatalf("expected discovery failure, got %v", err)
	}
	if !domain.Terminal(err) {
		t.Fatalf("discovery failure must be terminal")
	}
	if scanner.calls != 5 {
		t.Fatalf("expected exactly 5 passes, got %d", scanner.calls)
	}
	if len(reports) != 5 || reports[4].Pass != 5 {
		t.Fatalf("expected 5 pass reports, got %+v", reports)
	}
}

func TestResolveReturnsFirstMatchInDiscoveryOrder(t *testing.T) {
	scanner := &scriptedScanner{passes: [][]domain.DeviceDescriptor{
		nil,
		{
			{Name: "Phone", Address: "01"},
			{Name: "Xiaomi Smart Band 8", Address: "02"},
			{Name: "Xiaomi Smart Band 7", Address: "03"},
		},
	}}
	r := NewResolver(scanner, time.Millisecond, quick)

	d, err := r.Resolve(context.Background(), "Smart Band")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if d.Address != "02" {
		t.Fatalf("expected first match 02, got %+v", d)
	}
	if scanner.calls != 2 {
		t.Fatalf("expected to stop after the matching pass, got %d passes", scanner.calls)
	}
}

func TestResolveIsCaseSensitive(t *testing.T) {
	scanner := &scriptedScanner{passes: [][]domain.DeviceDescriptor{{{Name: "polar h10", Address: "01"}}}}
	r := NewResolver(scanner, time.Millisecond, domain.RetryPolicy{Delay: time.Millisecond, Attempts: 1})

	if _, err := r.Resolve(context.Background(), "Polar"); !errors.Is(err, domain.ErrDiscoveryFailed) {
		t.Fatalf("expected case-sensitive miss, got %v", err)
	}
}

func TestResolveTreatsScanErrorAsEmptyPass(t *testing.T) {
	scanner := &scriptedScanner{
		passes: [][]domain.DeviceDescriptor{nil, {{Name: "HRM-Pro", Address: "0A"}}},
		errs:   []error{errors.New("adapter busy")},
	}
	r := NewResolver(scanner, time.Millisecond, quick)

	d, err := r.Resolve(context.Background(), "HRM")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if d.Name != "HRM-Pro" {
		t.Fatalf("unexpected device %+v", d)
	}
}

func TestResolveStopsOnCancel(t *testing.T) {
	scanner := &scriptedScanner{}
	r := NewResolver(scanner, time.Millisecond, domain.RetryPolicy{Delay: time.Hour, Attempts: 5})

	ctx, cancel := context.WithCancel(context.Background())
	r.OnPass = func(PassReport) { cancel() }

	start := time.Now()
	_, err := r.Resolve(ctx, "x")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("pacing delay was not interrupted")
	}
	if scanner.calls != 1 {
		t.Fatalf("expected 1 pass before cancel, got %d", scanner.calls)
	}
}
