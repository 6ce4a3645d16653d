// Package camera wraps a platform device provider with explicit
// lifecycle: enable/disable, cyclic device switching, selection repair,
// and frame capture. Every disable path releases the capture stream —
// the device is held by the OS until then.
package camera

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hammamikhairi/chefcam/internal/domain"
)

// Profile selects the default-device policy.
type Profile string

const (
	// ProfileDesktop prefers a labeled built-in/integrated camera.
	ProfileDesktop Profile = "desktop"
	// ProfileMobile prefers the rear (environment-facing) camera.
	ProfileMobile Profile = "mobile"
)

// Option configures the adapter.
type Option func(*Adapter)

// WithProfile sets the default-device policy.
func WithProfile(p Profile) Option {
	return func(a *Adapter) { a.profile = p }
}

// WithNotifier sets the sink for user-facing camera notices.
func WithNotifier(n domain.Notifier) Option {
	return func(a *Adapter) { a.notify = n }
}

// Adapter manages the process-wide camera singleton.
type Adapter struct {
	provider domain.DeviceProvider
	notify   domain.Notifier
	log      zerolog.Logger
	profile  Profile

	mu     sync.Mutex
	state  domain.CameraState
	stream domain.StreamHandle
}

// New creates a camera adapter over the given device provider.
func New(provider domain.DeviceProvider, log zerolog.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		provider: provider,
		log:      log,
		profile:  ProfileDesktop,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns a copy of the camera state.
func (a *Adapter) State() domain.CameraState {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.state
	out.Devices = append([]domain.Device(nil), a.state.Devices...)
	return out
}

// SetEnabled turns the camera on or off. Enabling enumerates devices,
// picks a default per policy, and opens a capture stream. Disabling
// releases the stream and clears the device list and selection so the
// next enable re-enumerates instead of reusing stale handles.
func (a *Adapter) SetEnabled(ctx context.Context, on bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if on == a.state.On {
		return nil
	}
	if !on {
		a.releaseLocked()
		a.state = domain.CameraState{}
		a.log.Info().Msg("camera: disabled")
		return nil
	}

	devices, err := a.provider.EnumerateVideoInputs(ctx)
	if err != nil {
		return fmt.Errorf("enumerating video inputs: %w", err)
	}
	if len(devices) == 0 {
		return domain.ErrNoDevices
	}

	a.state.Devices = devices
	a.state.SelectedDeviceID = a.pickDefault(devices)
	if err := a.acquireLocked(ctx); err != nil {
		a.state = domain.CameraState{}
		return err
	}
	a.state.On = true
	a.log.Info().Str("device", a.state.SelectedDeviceID).Msg("camera: enabled")
	return nil
}

// Refresh re-enumerates devices while the camera is on and repairs the
// selection if the previously selected device has disappeared. The
// camera stays on.
func (a *Adapter) Refresh(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.state.On {
		return domain.ErrCameraOff
	}

	devices, err := a.provider.EnumerateVideoInputs(ctx)
	if err != nil {
		return fmt.Errorf("enumerating video inputs: %w", err)
	}
	if len(devices) == 0 {
		a.releaseLocked()
		a.state = domain.CameraState{}
		return domain.ErrNoDevices
	}

	a.state.Devices = devices
	if a.findDevice(a.state.SelectedDeviceID) < 0 {
		// Selection repair: the remembered device is gone.
		a.state.SelectedDeviceID = a.pickDefault(devices)
		a.log.Info().Str("device", a.state.SelectedDeviceID).Msg("camera: selection repaired")
		if err := a.acquireLocked(ctx); err != nil {
			// No device could be opened; a camera that cannot capture
			// must not advertise itself as on.
			a.releaseLocked()
			a.state = domain.CameraState{}
			return err
		}
	}
	return nil
}

// SwitchToNext selects the device cyclically after the current one and
// reacquires the stream. With fewer than two devices it is a no-op with
// a user-visible notice.
func (a *Adapter) SwitchToNext(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.state.On {
		return domain.ErrCameraOff
	}
	if len(a.state.Devices) < 2 {
		a.noticeLocked("Only one camera available.")
		return domain.ErrSingleDevice
	}

	prev := a.state.SelectedDeviceID
	idx := a.findDevice(prev)
	next := a.state.Devices[(idx+1)%len(a.state.Devices)]
	a.state.SelectedDeviceID = next.ID

	// Exact acquire: switching to "any other device" would defeat the
	// point of the gesture.
	if err := a.acquireExactLocked(ctx); err != nil {
		// Fall back to the previous device rather than killing capture.
		a.log.Warn().Err(err).Str("device", next.ID).Msg("camera: switch failed, reverting")
		a.state.SelectedDeviceID = prev
		if reerr := a.acquireExactLocked(ctx); reerr != nil {
			a.releaseLocked()
			a.state = domain.CameraState{}
			return fmt.Errorf("reacquiring previous device: %w", reerr)
		}
		a.noticeLocked("Could not switch camera.")
		return err
	}

	a.log.Info().Str("from", prev).Str("to", next.ID).Msg("camera: switched")
	return nil
}

// CaptureFrame returns the current frame as a JPEG data URI. It fails
// when the camera is off or the stream is not yet producing decodable
// frames.
func (a *Adapter) CaptureFrame(ctx context.Context) (string, error) {
	a.mu.Lock()
	stream := a.stream
	on := a.state.On
	a.mu.Unlock()

	if !on || stream == nil {
		return "", domain.ErrCameraOff
	}
	if !stream.Ready() {
		return "", domain.ErrFrameNotReady
	}
	return stream.CaptureFrame(ctx)
}

// Close releases the camera on shutdown.
func (a *Adapter) Close() error {
	return a.SetEnabled(context.Background(), false)
}

// acquireLocked releases any current stream and opens one bound to the
// selected device. Must be called with a.mu held.
func (a *Adapter) acquireLocked(ctx context.Context) error {
	a.releaseLocked()

	stream, err := a.provider.AcquireStream(ctx, a.state.SelectedDeviceID)
	if err != nil {
		// Graceful fallback: any camera beats no camera.
		for _, d := range a.state.Devices {
			if d.ID == a.state.SelectedDeviceID {
				continue
			}
			if s, ferr := a.provider.AcquireStream(ctx, d.ID); ferr == nil {
				a.log.Warn().Err(err).Str("fallback", d.ID).Msg("camera: preferred device rejected")
				a.state.SelectedDeviceID = d.ID
				a.stream = s
				return nil
			}
		}
		return fmt.Errorf("acquiring stream for %q: %w", a.state.SelectedDeviceID, err)
	}
	a.stream = stream
	return nil
}

// acquireExactLocked opens a stream for the selected device with no
// fallback. Must be called with a.mu held.
func (a *Adapter) acquireExactLocked(ctx context.Context) error {
	a.releaseLocked()
	stream, err := a.provider.AcquireStream(ctx, a.state.SelectedDeviceID)
	if err != nil {
		return fmt.Errorf("acquiring stream for %q: %w", a.state.SelectedDeviceID, err)
	}
	a.stream = stream
	return nil
}

// releaseLocked stops the active stream, if any. Must be called with
// a.mu held. Safe to call repeatedly.
func (a *Adapter) releaseLocked() {
	if a.stream == nil {
		return
	}
	if err := a.stream.Release(); err != nil {
		a.log.Warn().Err(err).Msg("camera: release failed")
	}
	a.stream = nil
}

// pickDefault applies the platform policy to a fresh enumeration.
func (a *Adapter) pickDefault(devices []domain.Device) string {
	if a.profile == ProfileMobile {
		for _, d := range devices {
			if d.Facing == "environment" {
				return d.ID
			}
		}
		return devices[0].ID
	}
	for _, d := range devices {
		label := strings.ToLower(d.Label)
		if strings.Contains(label, "built-in") || strings.Contains(label, "integrated") {
			return d.ID
		}
	}
	return devices[0].ID
}

// findDevice returns the index of the device with the given id, or -1.
func (a *Adapter) findDevice(id string) int {
	for i, d := range a.state.Devices {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func (a *Adapter) noticeLocked(msg string) {
	if a.notify != nil {
		a.notify.Notify(msg)
	}
}
