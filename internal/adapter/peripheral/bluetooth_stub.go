//go:build !ble

package peripheral

import (
	"log/slog"

	"suitcase-link/internal/domain"
)

// BluetoothRadio stands in for the BLE radio when Bluetooth support is not
// compiled in. Build with -tags ble to drive real hardware.
type BluetoothRadio struct {
	Radio
}

// NewBluetoothRadio always fails with ErrDisabled, so callers drop the
// peripheral transport instead of offering one that cannot scan.
func NewBluetoothRadio(_ *slog.Logger) (*BluetoothRadio, error) {
	return nil, domain.NewDomainError("NewBluetoothRadio", domain.ErrDisabled, "built without the ble tag")
}
