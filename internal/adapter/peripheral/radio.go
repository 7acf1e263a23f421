package peripheral

import (
	"context"
)

// Advertisement is one scan result for a peripheral advertising the
// configured service.
type Advertisement struct {
	ID   string
	Name string
	RSSI int
}

// Radio is the platform wireless stack.
type Radio interface {
	// Scan reports advertisers of service until ctx is cancelled or the radio
	// fails. It blocks; found may be called from any goroutine.
	Scan(ctx context.Context, service string, found func(Advertisement)) error
	// Connect opens a link to the peripheral with the given scan ID and
	// resolves the measurement characteristic.
	Connect(ctx context.Context, id, service, characteristic string) (Link, error)
}

// Link is an open connection to one peripheral.
type Link interface {
	// Subscribe enables notifications on the measurement characteristic.
	Subscribe(onPayload func([]byte)) error
	// Lost is closed when the peripheral drops the link.
	Lost() <-chan struct{}
	Close() error
}

// RSSIReader is implemented by links that can sample signal strength while
// connected.
type RSSIReader interface {
	RSSI() (int, error)
}
