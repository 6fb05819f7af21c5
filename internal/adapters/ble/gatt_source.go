// Package ble streams heart-rate measurement notifications from a BLE
// peripheral through tinygo.org/x/bluetooth.
package ble

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/xueayi/HeartRate-to-VRC/internal/adapters/feed"
	"github.com/xueayi/HeartRate-to-VRC/internal/app/discovery"
	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

const notifyBuffer = 16

// Config selects the peripheral and paces discovery.
type Config struct {
	DeviceName   string
	ScanWindow   time.Duration
	ScanAttempts int
	ScanPacing   time.Duration
}

type GattSource struct {
	adapter  *bluetooth.Adapter
	scanner  *Scanner
	resolver *discovery.Resolver
	fragment string
	log      logrus.FieldLogger

	target bluetooth.Address
	desc   domain.DeviceDescriptor

	current atomic.Pointer[liveSession]
}

type liveSession struct {
	address string
	sess    *feed.Session
}

// NewGattSource takes over the adapter's connect handler so that a dropped
// link ends the open session.
func NewGattSource(adapter *bluetooth.Adapter, cfg Config, log logrus.FieldLogger) *GattSource {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("transport", "ble")

	scanner := NewScanner(adapter, log)
	resolver := discovery.NewResolver(scanner, cfg.ScanWindow, domain.RetryPolicy{
		Delay:    cfg.ScanPacing,
		Attempts: cfg.ScanAttempts,
	})
	resolver.OnPass = func(p discovery.PassReport) {
		entry := log.WithFields(logrus.Fields{"pass": p.Pass, "seen": p.Seen, "target": cfg.DeviceName})
		if p.ScanErr != nil {
			entry = entry.WithError(p.ScanErr)
		}
		entry.Info("scan pass without match")
	}

	src := &GattSource{
		adapter:  adapter,
		scanner:  scanner,
		resolver: resolver,
		fragment: cfg.DeviceName,
		log:      log,
	}
	adapter.SetConnectHandler(src.onConnectChange)
	return src
}

func (s *GattSource) Kind() domain.TransportKind { return domain.TransportBLE }

// Prepare scans for the configured name fragment. Failure is terminal.
func (s *GattSource) Prepare(ctx context.Context) (domain.DeviceDescriptor, error) {
	desc, err := s.resolver.Resolve(ctx, s.fragment)
	if err != nil {
		return domain.DeviceDescriptor{}, err
	}
	addr, ok := s.scanner.Lookup(desc.Address)
	if !ok {
		return domain.DeviceDescriptor{}, fmt.Errorf("%w: address %s not in scan cache", domain.ErrDiscoveryFailed, desc.Address)
	}
	s.target = addr
	s.desc = desc
	return desc, nil
}

func (s *GattSource) Open(ctx context.Context) (ports.Session, error) {
	if s.desc.Address == "" {
		return nil, fmt.Errorf("%w: no device resolved", domain.ErrTransport)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	device, err := s.adapter.Connect(s.target, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", domain.ErrTransport, s.desc.Address, err)
	}

	char, err := heartRateCharacteristic(device)
	if err != nil {
		_ = device.Disconnect()
		return nil, err
	}

	live := &liveSession{address: s.desc.Address}
	live.sess = feed.New(notifyBuffer, func() error {
		s.current.CompareAndSwap(live, nil)
		return device.Disconnect()
	})
	s.current.Store(live)

	if err := char.EnableNotifications(forward(live.sess, time.Now)); err != nil {
		_ = live.sess.Close()
		return nil, fmt.Errorf("%w: enable notifications: %v", domain.ErrTransport, err)
	}
	s.log.WithFields(logrus.Fields{"name": s.desc.Name, "address": s.desc.Address}).Info("heart-rate notifications enabled")
	return live.sess, nil
}

func (s *GattSource) onConnectChange(device bluetooth.Device, connected bool) {
	if connected {
		return
	}
	live := s.current.Load()
	if live == nil || device.Address.String() != live.address {
		return
	}
	live.sess.Fail(fmt.Errorf("%w: device %s disconnected", domain.ErrTransport, live.address))
}

func heartRateCharacteristic(device bluetooth.Device) (bluetooth.DeviceCharacteristic, error) {
	services, err := device.DiscoverServices([]bluetooth.UUID{bluetooth.ServiceUUIDHeartRate})
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("%w: discover services: %v", domain.ErrTransport, err)
	}
	if len(services) == 0 {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("%w: heart rate service not found", domain.ErrTransport)
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{bluetooth.CharacteristicUUIDHeartRateMeasurement})
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("%w: discover characteristics: %v", domain.ErrTransport, err)
	}
	if len(chars) == 0 {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("%w: heart rate measurement characteristic not found", domain.ErrTransport)
	}
	return chars[0], nil
}

// forward copies each notification because the stack reuses its buffer.
func forward(sess *feed.Session, now func() time.Time) func([]byte) {
	return func(buf []byte) {
		data := make([]byte, len(buf))
		copy(data, buf)
		sess.Push(domain.RawPayload{Encoding: domain.EncodingGATT, Data: data, ReceivedAt: now()})
	}
}

var _ ports.TransportSource = (*GattSource)(nil)
