package camera

import (
	"context"

	"github.com/hammamikhairi/chefcam/internal/domain"
)

// NullProvider is the device provider for headless deployments where
// frames arrive from the client instead of local hardware. It
// enumerates no devices, so enabling the camera reports ErrNoDevices.
type NullProvider struct{}

var _ domain.DeviceProvider = NullProvider{}

func (NullProvider) EnumerateVideoInputs(context.Context) ([]domain.Device, error) {
	return nil, nil
}

func (NullProvider) AcquireStream(_ context.Context, id string) (domain.StreamHandle, error) {
	return nil, domain.ErrNoDevices
}
