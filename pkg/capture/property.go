package capture

import (
	"fmt"

	"github.com/video-system/go-tether/pkg/edsdk"
)

// GetProperty reads a 4 byte camera property.
func (m *Manager) GetProperty(id edsdk.PropertyID) (uint32, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cam, err := m.sessionCameraLocked()
	if err != nil {
		return 0, err
	}
	v, err := m.sdk.PropertyUint32(cam, id)
	if err != nil {
		return 0, fmt.Errorf("%w: get 0x%08X: %w", ErrPropertyAccess, uint32(id), err)
	}
	return v, nil
}

// SetProperty writes a 4 byte camera property.
func (m *Manager) SetProperty(id edsdk.PropertyID, value uint32) error {
	if err := m.ready(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cam, err := m.sessionCameraLocked()
	if err != nil {
		return err
	}
	if err := m.sdk.SetPropertyUint32(cam, id, value); err != nil {
		return fmt.Errorf("%w: set 0x%08X: %w", ErrPropertyAccess, uint32(id), err)
	}
	return nil
}

// BatteryLevel returns the battery charge in percent. Cameras on AC power
// report 0xFFFFFFFF.
func (m *Manager) BatteryLevel() (uint32, error) {
	return m.GetProperty(edsdk.PropBatteryLevel)
}

// AvailableShots returns how many more stills fit on the card.
func (m *Manager) AvailableShots() (uint32, error) {
	return m.GetProperty(edsdk.PropAvailableShots)
}
