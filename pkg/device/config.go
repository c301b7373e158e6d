package device

import (
	"github.com/levenlabs/go-lflag"
	"github.com/sunbridge/sunbridge/pkg/storage"
)

// Configured sets up the device from flags. Init must be called before use.
func Configured(db storage.Database) *Device {
	deviceID := lflag.String("device-id", "sunberry", "Identifier for this device in storage")

	d := &Device{db: db}

	lflag.Do(func() {
		d.deviceID = *deviceID
	})

	return d
}
