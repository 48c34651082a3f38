// Package errors provides predefined sentinel errors for common failure cases.
package errors

// Configuration and validation errors.
var (
	// ErrNoCommand indicates no command was specified to jail.
	ErrNoCommand = &JailError{
		Kind:   ErrInvalidConfig,
		Detail: "no command specified",
	}

	// ErrInvalidPort indicates the configured TCP port is out of range.
	ErrInvalidPort = &JailError{
		Kind:   ErrInvalidConfig,
		Detail: "port must be between 1 and 65535",
	}

	// ErrUnknownUser indicates the user spec could not be resolved.
	ErrUnknownUser = &JailError{
		Kind:   ErrInvalidConfig,
		Detail: "unknown user",
	}

	// ErrUnknownGroup indicates the group spec could not be resolved.
	ErrUnknownGroup = &JailError{
		Kind:   ErrInvalidConfig,
		Detail: "unknown group",
	}

	// ErrInvalidRlimit indicates a malformed rlimit flag value.
	ErrInvalidRlimit = &JailError{
		Kind:   ErrInvalidConfig,
		Detail: "invalid rlimit value",
	}
)

// Admission control errors.
var (
	// ErrMaxConnsPerIP indicates the per-IP connection cap was reached.
	ErrMaxConnsPerIP = &JailError{
		Kind:   ErrAdmission,
		Detail: "max_conns_per_ip limit reached",
	}
)

// Fork/clone errors.
var (
	// ErrCloneFailed indicates the clone/fork of the child failed.
	ErrCloneFailed = &JailError{
		Kind:   ErrInternal,
		Detail: "failed to clone child",
	}

	// ErrLogPipeFailed indicates the parent/child log pipe could not be created.
	ErrLogPipeFailed = &JailError{
		Kind:   ErrInternal,
		Detail: "failed to create log pipe",
	}
)

// Security-related errors.
var (
	// ErrSeccompFilter indicates a seccomp filter error.
	ErrSeccompFilter = &JailError{
		Kind:   ErrSeccomp,
		Detail: "failed to apply seccomp filter",
	}

	// ErrCapabilityDrop indicates a capability drop error.
	ErrCapabilityDrop = &JailError{
		Kind:   ErrCapability,
		Detail: "failed to drop capabilities",
	}

	// ErrCapabilityUnknown indicates an unknown capability was specified.
	ErrCapabilityUnknown = &JailError{
		Kind:   ErrCapability,
		Detail: "unknown capability",
	}
)

// Namespace errors.
var (
	// ErrNamespaceSetup indicates a namespace setup error.
	ErrNamespaceSetup = &JailError{
		Kind:   ErrNamespace,
		Detail: "failed to setup namespace",
	}

	// ErrNamespaceJoin indicates a namespace join error.
	ErrNamespaceJoin = &JailError{
		Kind:   ErrNamespace,
		Detail: "failed to join namespace",
	}
)

// Cgroup errors.
var (
	// ErrCgroupSetup indicates a cgroup setup error.
	ErrCgroupSetup = &JailError{
		Kind:   ErrCgroup,
		Detail: "failed to setup cgroup",
	}

	// ErrCgroupNotFound indicates the cgroup was not found.
	ErrCgroupNotFound = &JailError{
		Kind:   ErrCgroup,
		Detail: "cgroup not found",
	}

	// ErrCgroupResource indicates a cgroup resource limit error.
	ErrCgroupResource = &JailError{
		Kind:   ErrCgroup,
		Detail: "failed to apply resource limits",
	}
)

// Device errors.
var (
	// ErrDeviceCreate indicates a device creation error.
	ErrDeviceCreate = &JailError{
		Kind:   ErrDevice,
		Detail: "failed to create device",
	}

	// ErrDeviceNotAllowed indicates a device is not in the whitelist.
	ErrDeviceNotAllowed = &JailError{
		Kind:   ErrDevice,
		Detail: "device not allowed",
	}

	// ErrInvalidDevicePath indicates an invalid device path.
	ErrInvalidDevicePath = &JailError{
		Kind:   ErrDevice,
		Detail: "invalid device path",
	}
)

// Rootfs errors.
var (
	// ErrRootfsSetup indicates a rootfs setup error.
	ErrRootfsSetup = &JailError{
		Kind:   ErrRootfs,
		Detail: "failed to setup rootfs",
	}

	// ErrPivotRoot indicates a pivot_root error.
	ErrPivotRoot = &JailError{
		Kind:   ErrRootfs,
		Detail: "failed to pivot_root",
	}

	// ErrMountFailed indicates a mount error.
	ErrMountFailed = &JailError{
		Kind:   ErrRootfs,
		Detail: "failed to mount",
	}
)

// Net-attachment errors (supplemented).
var (
	// ErrNetAttachFailed indicates the macvlan/macvtap attachment failed.
	ErrNetAttachFailed = &JailError{
		Kind:   ErrNetAttach,
		Detail: "failed to attach interface to child namespace",
	}
)

// Hook errors (supplemented).
var (
	// ErrHookFailed indicates a connection-lifecycle hook command failed.
	ErrHookFailed = &JailError{
		Kind:   ErrHook,
		Detail: "lifecycle hook command failed",
	}

	// ErrHookTimeout indicates a hook did not finish within its timeout.
	ErrHookTimeout = &JailError{
		Kind:   ErrHook,
		Detail: "lifecycle hook timed out",
	}
)

// Process errors.
var (
	// ErrProcessStart indicates a process start error.
	ErrProcessStart = &JailError{
		Kind:   ErrInternal,
		Detail: "failed to start process",
	}

	// ErrSignalFailed indicates a signal delivery error.
	ErrSignalFailed = &JailError{
		Kind:   ErrInternal,
		Detail: "failed to send signal",
	}
)
