//go:build ble

package peripheral

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"
)

// BluetoothRadio drives the host adapter through tinygo.org/x/bluetooth.
type BluetoothRadio struct {
	adapter *bluetooth.Adapter
	logger  *slog.Logger

	mu    sync.Mutex
	seen  map[string]bluetooth.Address
	links map[string]*bluetoothLink
}

// NewBluetoothRadio enables the default adapter.
func NewBluetoothRadio(logger *slog.Logger) (*BluetoothRadio, error) {
	r := &BluetoothRadio{
		adapter: bluetooth.DefaultAdapter,
		logger:  logger,
		seen:    make(map[string]bluetooth.Address),
		links:   make(map[string]*bluetoothLink),
	}
	if err := r.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable bluetooth adapter: %w", err)
	}
	r.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		r.mu.Lock()
		l := r.links[device.Address.String()]
		r.mu.Unlock()
		if l != nil {
			l.markLost()
		}
	})
	return r, nil
}

// Scan implements Radio.
func (r *BluetoothRadio) Scan(ctx context.Context, service string, found func(Advertisement)) error {
	uuid, err := bluetooth.ParseUUID(service)
	if err != nil {
		return fmt.Errorf("service uuid %q: %w", service, err)
	}

	r.mu.Lock()
	clear(r.seen)
	r.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		if err := r.adapter.StopScan(); err != nil {
			r.logger.Debug("stop scan", "error", err)
		}
	})
	defer stop()

	err = r.adapter.Scan(func(_ *bluetooth.Adapter, res bluetooth.ScanResult) {
		if !res.HasServiceUUID(uuid) {
			return
		}
		id := res.Address.String()
		r.mu.Lock()
		r.seen[id] = res.Address
		r.mu.Unlock()
		found(Advertisement{ID: id, Name: res.LocalName(), RSSI: int(res.RSSI)})
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

type dialResult struct {
	dev bluetooth.Device
	err error
}

// Connect implements Radio. The adapter call itself cannot be cancelled; a
// connection that completes after ctx expired is closed immediately.
func (r *BluetoothRadio) Connect(ctx context.Context, id, service, characteristic string) (Link, error) {
	r.mu.Lock()
	addr, ok := r.seen[id]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("peripheral %s was not seen in the last scan", id)
	}
	svcUUID, err := bluetooth.ParseUUID(service)
	if err != nil {
		return nil, fmt.Errorf("service uuid %q: %w", service, err)
	}
	charUUID, err := bluetooth.ParseUUID(characteristic)
	if err != nil {
		return nil, fmt.Errorf("characteristic uuid %q: %w", characteristic, err)
	}

	done := make(chan dialResult, 1)
	go func() {
		dev, err := r.adapter.Connect(addr, bluetooth.ConnectionParams{})
		done <- dialResult{dev: dev, err: err}
	}()

	var dev bluetooth.Device
	select {
	case <-ctx.Done():
		go func() {
			if res := <-done; res.err == nil {
				_ = res.dev.Disconnect()
			}
		}()
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		dev = res.dev
	}

	ch, err := findCharacteristic(dev, svcUUID, charUUID)
	if err != nil {
		_ = dev.Disconnect()
		return nil, err
	}

	l := &bluetoothLink{radio: r, id: id, dev: dev, char: ch, lost: make(chan struct{})}
	r.mu.Lock()
	r.links[id] = l
	r.mu.Unlock()
	return l, nil
}

func findCharacteristic(dev bluetooth.Device, svc, char bluetooth.UUID) (bluetooth.DeviceCharacteristic, error) {
	srvs, err := dev.DiscoverServices([]bluetooth.UUID{svc})
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("discover services: %w", err)
	}
	for _, srv := range srvs {
		chars, err := srv.DiscoverCharacteristics([]bluetooth.UUID{char})
		if err != nil {
			return bluetooth.DeviceCharacteristic{}, fmt.Errorf("discover characteristics: %w", err)
		}
		if len(chars) > 0 {
			return chars[0], nil
		}
	}
	return bluetooth.DeviceCharacteristic{}, fmt.Errorf("characteristic %s not found", char.String())
}

type bluetoothLink struct {
	radio    *BluetoothRadio
	id       string
	dev      bluetooth.Device
	char     bluetooth.DeviceCharacteristic
	lost     chan struct{}
	lostOnce sync.Once
}

func (l *bluetoothLink) Subscribe(onPayload func([]byte)) error {
	return l.char.EnableNotifications(func(buf []byte) {
		// The stack reuses buf after the callback returns.
		onPayload(append([]byte(nil), buf...))
	})
}

func (l *bluetoothLink) Lost() <-chan struct{} { return l.lost }

func (l *bluetoothLink) markLost() { l.lostOnce.Do(func() { close(l.lost) }) }

func (l *bluetoothLink) Close() error {
	l.radio.mu.Lock()
	if l.radio.links[l.id] == l {
		delete(l.radio.links, l.id)
	}
	l.radio.mu.Unlock()
	return l.dev.Disconnect()
}

// Compile-time interface check.
var _ Radio = (*BluetoothRadio)(nil)
