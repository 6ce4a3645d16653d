package camera

import (
	"context"
	"sync"

	"github.com/hammamikhairi/chefcam/internal/domain"
)

// Compile-time interface checks.
var (
	_ domain.DeviceProvider = (*FakeProvider)(nil)
	_ domain.StreamHandle   = (*fakeStream)(nil)
)

// FakeProvider is an in-process device provider used in tests and when
// no real capture bridge is configured. It serves a fixed frame and
// records acquire/release counts.
type FakeProvider struct {
	mu         sync.Mutex
	devices    []domain.Device
	frame      string
	notReady   bool
	acquireErr map[string]error
	acquired   int
	released   int
}

// NewFakeProvider creates a fake provider with the given devices.
func NewFakeProvider(devices ...domain.Device) *FakeProvider {
	if len(devices) == 0 {
		devices = []domain.Device{{ID: "fake-0", Label: "Built-in Camera"}}
	}
	return &FakeProvider{
		devices:    devices,
		frame:      "data:image/jpeg;base64,/9j/fake",
		acquireErr: make(map[string]error),
	}
}

// SetDevices replaces the device list returned by future enumerations.
func (p *FakeProvider) SetDevices(devices ...domain.Device) {
	p.mu.Lock()
	p.devices = append([]domain.Device(nil), devices...)
	p.mu.Unlock()
}

// SetFrame sets the data URI returned by CaptureFrame.
func (p *FakeProvider) SetFrame(frame string) {
	p.mu.Lock()
	p.frame = frame
	p.mu.Unlock()
}

// SetNotReady makes streams report not-ready until cleared.
func (p *FakeProvider) SetNotReady(v bool) {
	p.mu.Lock()
	p.notReady = v
	p.mu.Unlock()
}

// FailAcquire makes AcquireStream fail for the given device id.
func (p *FakeProvider) FailAcquire(deviceID string, err error) {
	p.mu.Lock()
	p.acquireErr[deviceID] = err
	p.mu.Unlock()
}

// Counts returns how many streams were acquired and released.
func (p *FakeProvider) Counts() (acquired, released int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired, p.released
}

// EnumerateVideoInputs lists the configured devices.
func (p *FakeProvider) EnumerateVideoInputs(ctx context.Context) ([]domain.Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Device(nil), p.devices...), nil
}

// AcquireStream opens a fake stream for the given device.
func (p *FakeProvider) AcquireStream(ctx context.Context, deviceID string) (domain.StreamHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.acquireErr[deviceID]; err != nil {
		return nil, err
	}
	p.acquired++
	return &fakeStream{provider: p, deviceID: deviceID}, nil
}

type fakeStream struct {
	provider *FakeProvider
	deviceID string
	mu       sync.Mutex
	released bool
}

func (s *fakeStream) Ready() bool {
	s.provider.mu.Lock()
	defer s.provider.mu.Unlock()
	return !s.provider.notReady
}

func (s *fakeStream) CaptureFrame(ctx context.Context) (string, error) {
	s.mu.Lock()
	released := s.released
	s.mu.Unlock()
	if released {
		return "", domain.ErrCameraOff
	}
	s.provider.mu.Lock()
	defer s.provider.mu.Unlock()
	return s.provider.frame, nil
}

func (s *fakeStream) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	s.provider.mu.Lock()
	s.provider.released++
	s.provider.mu.Unlock()
	return nil
}
