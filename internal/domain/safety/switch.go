package safety

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/signalbot/internal/ports"
)

// FlagEmergencyStop is the flag name of the global kill switch.
const FlagEmergencyStop = "emergency_stop"

// Switch is the emergency stop. Engaging it blocks every authorization until
// it is released.
type Switch struct {
	flags ports.FlagStore
}

func NewSwitch(flags ports.FlagStore) *Switch {
	return &Switch{flags: flags}
}

func (s *Switch) Engaged(ctx context.Context) (bool, error) {
	v, err := s.flags.GetFlag(ctx, FlagEmergencyStop)
	if err != nil {
		return false, fmt.Errorf("safety.Engaged: %w", err)
	}
	return v, nil
}

func (s *Switch) Engage(ctx context.Context) error {
	if err := s.flags.SetFlag(ctx, FlagEmergencyStop, true); err != nil {
		return fmt.Errorf("safety.Engage: %w", err)
	}
	return nil
}

func (s *Switch) Release(ctx context.Context) error {
	if err := s.flags.SetFlag(ctx, FlagEmergencyStop, false); err != nil {
		return fmt.Errorf("safety.Release: %w", err)
	}
	return nil
}
