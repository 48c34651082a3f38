package linux

import (
	"fmt"

	"github.com/syndtr/gocapability/capability"
)

// DropPrivileges implements the dropPrivs step: when keepCaps is false,
// every capability is cleared from every set (bounding, effective,
// permitted, inheritable, ambient); when true, the process's current
// permitted/effective/inheritable sets are left untouched and only the
// ambient set is cleared, matching the teacher's "retain the permitted
// set unchanged" semantics.
func DropPrivileges(keepCaps bool) error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return fmt.Errorf("load capability state: %w", err)
	}
	if err := caps.Load(); err != nil {
		return fmt.Errorf("load capability state: %w", err)
	}

	caps.Clear(capability.CAPS | capability.BOUNDING | capability.AMBIENT)

	if keepCaps {
		// Re-load so bounding/effective/permitted/inheritable reflect
		// the process's existing set rather than the cleared one just
		// built above; only ambient is actually dropped.
		kept, err := capability.NewPid2(0)
		if err != nil {
			return fmt.Errorf("reload capability state: %w", err)
		}
		if err := kept.Load(); err != nil {
			return fmt.Errorf("reload capability state: %w", err)
		}
		kept.Clear(capability.AMBIENT)
		if err := kept.Apply(capability.CAPS | capability.BOUNDING | capability.AMBIENT); err != nil {
			return fmt.Errorf("apply capability state: %w", err)
		}
		return nil
	}

	if err := caps.Apply(capability.CAPS | capability.BOUNDING | capability.AMBIENT); err != nil {
		return fmt.Errorf("apply capability state: %w", err)
	}
	return nil
}

// CapabilityNames returns the human-readable names of every capability
// currently held in the effective set of the calling process, for
// logging/diagnostics.
func CapabilityNames() ([]string, error) {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return nil, err
	}
	if err := caps.Load(); err != nil {
		return nil, err
	}
	var names []string
	for _, c := range capability.List() {
		if caps.Get(capability.EFFECTIVE, c) {
			names = append(names, c.String())
		}
	}
	return names, nil
}
