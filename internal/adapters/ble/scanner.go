package ble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

const stopRetry = 100 * time.Millisecond

// Scanner runs timed scan passes on a tinygo bluetooth adapter and remembers
// the platform address of every device it has reported.
type Scanner struct {
	adapter *bluetooth.Adapter
	log     logrus.FieldLogger

	enableOnce sync.Once
	enableErr  error

	mu    sync.Mutex
	addrs map[string]bluetooth.Address
}

func NewScanner(adapter *bluetooth.Adapter, log logrus.FieldLogger) *Scanner {
	return &Scanner{
		adapter: adapter,
		log:     log,
		addrs:   make(map[string]bluetooth.Address),
	}
}

// Enable powers the BLE stack once; later calls return the first result.
func (s *Scanner) Enable() error {
	s.enableOnce.Do(func() {
		s.enableErr = s.adapter.Enable()
	})
	return s.enableErr
}

func (s *Scanner) Scan(ctx context.Context, window time.Duration) ([]domain.DeviceDescriptor, error) {
	if err := s.Enable(); err != nil {
		return nil, fmt.Errorf("enable BLE stack: %w", err)
	}

	scanCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	set := newResultSet()
	scanDone := make(chan struct{})
	go s.stopWhenDone(scanCtx, scanDone)

	err := s.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		if set.add(r.Address.String(), r.LocalName(), r.Address) {
			s.log.WithFields(logrus.Fields{
				"address": r.Address.String(),
				"name":    r.LocalName(),
				"rssi":    r.RSSI,
			}).Debug("ble device seen")
		}
	})
	close(scanDone)
	if err != nil {
		return nil, fmt.Errorf("ble scan: %w", err)
	}

	s.mu.Lock()
	for _, r := range set.results {
		s.addrs[r.key] = r.addr
	}
	s.mu.Unlock()
	return set.descriptors(), nil
}

// Lookup returns the platform address behind a descriptor address.
func (s *Scanner) Lookup(address string) (bluetooth.Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr, ok := s.addrs[address]
	return addr, ok
}

// stopWhenDone ends the blocking Scan call once the window closes. StopScan
// fails when Scan has not started yet, so it is retried until Scan returns.
func (s *Scanner) stopWhenDone(ctx context.Context, scanDone <-chan struct{}) {
	select {
	case <-scanDone:
		return
	case <-ctx.Done():
	}
	for {
		if err := s.adapter.StopScan(); err == nil {
			return
		}
		select {
		case <-scanDone:
			return
		case <-time.After(stopRetry):
		}
	}
}

type scanResult struct {
	key  string
	name string
	addr bluetooth.Address
}

// resultSet keeps scan results in first-seen order, one per address.
type resultSet struct {
	mu      sync.Mutex
	index   map[string]int
	results []scanResult
}

func newResultSet() *resultSet {
	return &resultSet{index: make(map[string]int)}
}

// add reports whether key is new. A name arriving in a later scan response
// fills in an address first seen without one.
func (r *resultSet) add(key, name string, addr bluetooth.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.index[key]; ok {
		if r.results[i].name == "" && name != "" {
			r.results[i].name = name
		}
		return false
	}
	r.index[key] = len(r.results)
	r.results = append(r.results, scanResult{key: key, name: name, addr: addr})
	return true
}

func (r *resultSet) descriptors() []domain.DeviceDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.DeviceDescriptor, 0, len(r.results))
	for _, res := range r.results {
		out = append(out, domain.DeviceDescriptor{Name: res.name, Address: res.key})
	}
	return out
}

var _ ports.Scanner = (*Scanner)(nil)
