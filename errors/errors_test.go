package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKind_String(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		expected string
	}{
		{ErrNotFound, "not found"},
		{ErrAlreadyExists, "already exists"},
		{ErrInvalidState, "invalid state"},
		{ErrInvalidConfig, "invalid config"},
		{ErrPermission, "permission denied"},
		{ErrResource, "resource error"},
		{ErrNamespace, "namespace error"},
		{ErrCgroup, "cgroup error"},
		{ErrSeccomp, "seccomp error"},
		{ErrCapability, "capability error"},
		{ErrDevice, "device error"},
		{ErrRootfs, "rootfs error"},
		{ErrAdmission, "admission rejected"},
		{ErrNetAttach, "net attach error"},
		{ErrHook, "hook error"},
		{ErrInternal, "internal error"},
		{ErrorKind(999), "unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.expected {
				t.Errorf("ErrorKind.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestJailError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *JailError
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "<nil>",
		},
		{
			name: "full error",
			err: &JailError{
				Op:      "mountFS",
				ChildID: "1234",
				Kind:    ErrNotFound,
				Detail:  "bind source not found",
				Err:     fmt.Errorf("file not found"),
			},
			expected: "child 1234: mountFS: bind source not found: file not found",
		},
		{
			name: "without child id",
			err: &JailError{
				Op:     "setup",
				Kind:   ErrRootfs,
				Detail: "pivot_root failed",
			},
			expected: "setup: pivot_root failed",
		},
		{
			name: "kind only",
			err: &JailError{
				Kind: ErrPermission,
			},
			expected: "permission denied",
		},
		{
			name: "with underlying error",
			err: &JailError{
				Op:   "mount",
				Kind: ErrRootfs,
				Err:  fmt.Errorf("device busy"),
			},
			expected: "mount: rootfs error: device busy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("JailError.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestJailError_Unwrap(t *testing.T) {
	underlying := fmt.Errorf("underlying error")
	err := &JailError{
		Op:   "test",
		Kind: ErrInternal,
		Err:  underlying,
	}

	if got := err.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}

	var nilErr *JailError
	if got := nilErr.Unwrap(); got != nil {
		t.Errorf("nil.Unwrap() = %v, want nil", got)
	}
}

func TestJailError_Is(t *testing.T) {
	err1 := &JailError{Kind: ErrNotFound, Op: "test1"}
	err2 := &JailError{Kind: ErrNotFound, Op: "test2"}
	err3 := &JailError{Kind: ErrPermission, Op: "test3"}

	if !err1.Is(err2) {
		t.Error("err1.Is(err2) should be true (same kind)")
	}

	if err1.Is(err3) {
		t.Error("err1.Is(err3) should be false (different kind)")
	}

	if err1.Is(fmt.Errorf("some error")) {
		t.Error("err1.Is(fmt.Errorf(...)) should be false")
	}

	var nilErr *JailError
	if !nilErr.Is(nil) {
		t.Error("nil.Is(nil) should be true")
	}
}

func TestNew(t *testing.T) {
	err := New(ErrInvalidConfig, "validate", "command is empty")

	if err.Kind != ErrInvalidConfig {
		t.Errorf("Kind = %v, want %v", err.Kind, ErrInvalidConfig)
	}
	if err.Op != "validate" {
		t.Errorf("Op = %q, want %q", err.Op, "validate")
	}
	if err.Detail != "command is empty" {
		t.Errorf("Detail = %q, want %q", err.Detail, "command is empty")
	}
}

func TestWrap(t *testing.T) {
	underlying := fmt.Errorf("permission denied")
	err := Wrap(underlying, ErrPermission, "open file")

	if err.Err != underlying {
		t.Error("Wrapped error should preserve underlying error")
	}
	if err.Kind != ErrPermission {
		t.Errorf("Kind = %v, want %v", err.Kind, ErrPermission)
	}
	if err.Op != "open file" {
		t.Errorf("Op = %q, want %q", err.Op, "open file")
	}
}

func TestWrapWithChild(t *testing.T) {
	underlying := fmt.Errorf("not found")
	err := WrapWithChild(underlying, ErrNotFound, "reap", "4242")

	if err.ChildID != "4242" {
		t.Errorf("ChildID = %q, want %q", err.ChildID, "4242")
	}
}

func TestWrapWithDetail(t *testing.T) {
	underlying := fmt.Errorf("syscall failed")
	err := WrapWithDetail(underlying, ErrSeccomp, "filter", "invalid architecture")

	if err.Detail != "invalid architecture" {
		t.Errorf("Detail = %q, want %q", err.Detail, "invalid architecture")
	}
}

func TestIsKind(t *testing.T) {
	err := &JailError{Kind: ErrNotFound}
	wrapped := fmt.Errorf("wrapped: %w", err)

	if !IsKind(err, ErrNotFound) {
		t.Error("IsKind(err, ErrNotFound) should be true")
	}
	if !IsKind(wrapped, ErrNotFound) {
		t.Error("IsKind(wrapped, ErrNotFound) should be true")
	}
	if IsKind(err, ErrPermission) {
		t.Error("IsKind(err, ErrPermission) should be false")
	}
	if IsKind(fmt.Errorf("plain error"), ErrNotFound) {
		t.Error("IsKind(plain error, ErrNotFound) should be false")
	}
}

func TestGetKind(t *testing.T) {
	err := &JailError{Kind: ErrCgroup}
	wrapped := fmt.Errorf("wrapped: %w", err)

	kind, ok := GetKind(err)
	if !ok || kind != ErrCgroup {
		t.Errorf("GetKind(err) = (%v, %v), want (%v, true)", kind, ok, ErrCgroup)
	}

	kind, ok = GetKind(wrapped)
	if !ok || kind != ErrCgroup {
		t.Errorf("GetKind(wrapped) = (%v, %v), want (%v, true)", kind, ok, ErrCgroup)
	}

	_, ok = GetKind(fmt.Errorf("plain error"))
	if ok {
		t.Error("GetKind(plain error) should return false")
	}
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  *JailError
		kind ErrorKind
	}{
		{"ErrNoCommand", ErrNoCommand, ErrInvalidConfig},
		{"ErrInvalidPort", ErrInvalidPort, ErrInvalidConfig},
		{"ErrMaxConnsPerIP", ErrMaxConnsPerIP, ErrAdmission},
		{"ErrSeccompFilter", ErrSeccompFilter, ErrSeccomp},
		{"ErrCapabilityDrop", ErrCapabilityDrop, ErrCapability},
		{"ErrNamespaceSetup", ErrNamespaceSetup, ErrNamespace},
		{"ErrCgroupSetup", ErrCgroupSetup, ErrCgroup},
		{"ErrDeviceCreate", ErrDeviceCreate, ErrDevice},
		{"ErrRootfsSetup", ErrRootfsSetup, ErrRootfs},
		{"ErrNetAttachFailed", ErrNetAttachFailed, ErrNetAttach},
		{"ErrHookFailed", ErrHookFailed, ErrHook},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("%s.Kind = %v, want %v", tt.name, tt.err.Kind, tt.kind)
			}
			wrapped := Wrap(fmt.Errorf("underlying"), tt.kind, "test")
			if !errors.Is(wrapped, tt.err) {
				t.Errorf("errors.Is(wrapped, %s) should be true", tt.name)
			}
		})
	}
}

func TestErrorChain(t *testing.T) {
	underlying := fmt.Errorf("file not found")
	err1 := Wrap(underlying, ErrInvalidConfig, "parse config")
	err2 := fmt.Errorf("jail setup failed: %w", err1)

	if !errors.Is(err2, ErrNoCommand) {
		t.Error("errors.Is should find ErrNoCommand in chain")
	}

	var jerr *JailError
	if !errors.As(err2, &jerr) {
		t.Error("errors.As should find JailError in chain")
	}
	if jerr.Op != "parse config" {
		t.Errorf("jerr.Op = %q, want %q", jerr.Op, "parse config")
	}

	if errors.Unwrap(err1) != underlying {
		t.Error("Unwrap should return underlying error")
	}
}
