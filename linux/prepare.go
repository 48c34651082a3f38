package linux

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ApplyPersonality implements the personality-bits half of the
// prepareEnv step: it sets the process's personality to the configured
// bits. personality(2) replaces the whole persona value, so the result
// is PER_LINUX plus exactly these flags. A zero mask is a no-op.
func ApplyPersonality(bits uint32) error {
	if bits == 0 {
		return nil
	}
	if _, err := unix.Personality(uint(bits)); err != nil {
		return fmt.Errorf("personality(0x%x): %w", bits, err)
	}
	return nil
}
