package linux

import "testing"

// ============================================================================
// ARCHITECTURE TESTS
// ============================================================================

// TestArchToAudit_ValidArches tests that all supported architectures map correctly.
func TestArchToAudit_ValidArches(t *testing.T) {
	tests := []struct {
		arch     SeccompArch
		expected uint32
	}{
		{ArchX86_64, AUDIT_ARCH_X86_64},
		{ArchX86, AUDIT_ARCH_I386},
		{ArchAARCH64, AUDIT_ARCH_AARCH64},
		{ArchARM, AUDIT_ARCH_ARM},
	}

	for _, tt := range tests {
		t.Run(string(tt.arch), func(t *testing.T) {
			got, ok := archToAudit[tt.arch]
			if !ok {
				t.Errorf("arch %s not found in archToAudit", tt.arch)
				return
			}
			if got != tt.expected {
				t.Errorf("archToAudit[%s] = 0x%x, want 0x%x", tt.arch, got, tt.expected)
			}
		})
	}
}

// TestArchToAudit_UnknownArch tests that unknown architectures are not in the map.
func TestArchToAudit_UnknownArch(t *testing.T) {
	unknownArches := []SeccompArch{
		"SCMP_ARCH_UNKNOWN",
		"invalid",
		"",
	}

	for _, arch := range unknownArches {
		if _, ok := archToAudit[arch]; ok {
			t.Errorf("unknown arch %q should not be in archToAudit", arch)
		}
	}
}

// ============================================================================
// ACTION TESTS
// ============================================================================

// TestActionToRet_AllActions tests that all OCI actions map to seccomp return values.
func TestActionToRet_AllActions(t *testing.T) {
	tests := []struct {
		action   SeccompAction
		expected uint32
	}{
		{ActKill, SECCOMP_RET_KILL_THREAD},
		{ActKillProcess, SECCOMP_RET_KILL_PROCESS},
		{ActKillThread, SECCOMP_RET_KILL_THREAD},
		{ActTrap, SECCOMP_RET_TRAP},
		{ActErrno, SECCOMP_RET_ERRNO},
		{ActTrace, SECCOMP_RET_TRACE},
		{ActAllow, SECCOMP_RET_ALLOW},
		{ActLog, SECCOMP_RET_LOG},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			got, ok := actionToRet[tt.action]
			if !ok {
				t.Errorf("action %s not found in actionToRet", tt.action)
				return
			}
			if got != tt.expected {
				t.Errorf("actionToRet[%s] = 0x%x, want 0x%x", tt.action, got, tt.expected)
			}
		})
	}
}

// TestActionToRet_UnknownAction tests that unknown actions are not in the map.
func TestActionToRet_UnknownAction(t *testing.T) {
	unknownActions := []SeccompAction{
		"SCMP_ACT_UNKNOWN",
		"invalid",
		"",
	}

	for _, action := range unknownActions {
		if _, ok := actionToRet[action]; ok {
			t.Errorf("unknown action %q should not be in actionToRet", action)
		}
	}
}

// ============================================================================
// SYSCALL MAP TESTS
// ============================================================================

// TestSyscallMap_CommonSyscalls tests that common syscalls are mapped.
func TestSyscallMap_CommonSyscalls(t *testing.T) {
	// Critical syscalls that must be present
	criticalSyscalls := []struct {
		name     string
		expected int
	}{
		{"read", 0},
		{"write", 1},
		{"open", 2},
		{"close", 3},
		{"execve", 59},
		{"exit", 60},
		{"clone", 56},
		{"fork", 57},
		{"kill", 62},
	}

	for _, sc := range criticalSyscalls {
		t.Run(sc.name, func(t *testing.T) {
			got, ok := syscallMap[sc.name]
			if !ok {
				t.Errorf("syscall %s not found in syscallMap", sc.name)
				return
			}
			if got != sc.expected {
				t.Errorf("syscallMap[%s] = %d, want %d", sc.name, got, sc.expected)
			}
		})
	}
}

// TestSyscallMap_NoNegativeNumbers tests that no syscall has a negative number.
func TestSyscallMap_NoNegativeNumbers(t *testing.T) {
	for name, nr := range syscallMap {
		if nr < 0 {
			t.Errorf("syscall %s has negative number %d", name, nr)
		}
	}
}

// ============================================================================
// BPF FILTER BUILD TESTS
// ============================================================================

// TestBuildSeccompFilter_EmptyConfig tests building filter with empty config.
func TestBuildSeccompFilter_EmptyConfig(t *testing.T) {
	config := &SeccompPolicy{
		DefaultAction: ActAllow,
	}

	filter, err := buildSeccompFilter(config)
	if err != nil {
		t.Fatalf("buildSeccompFilter failed: %v", err)
	}

	// Should have at least arch check + default action
	if len(filter) < 3 {
		t.Errorf("filter too short: %d instructions", len(filter))
	}
}

// TestBuildSeccompFilter_SingleSyscall tests building filter with one syscall rule.
func TestBuildSeccompFilter_SingleSyscall(t *testing.T) {
	config := &SeccompPolicy{
		DefaultAction: ActAllow,
		Syscalls: []SeccompRule{
			{
				Names:  []string{"write"},
				Action: ActErrno,
			},
		},
	}

	filter, err := buildSeccompFilter(config)
	if err != nil {
		t.Fatalf("buildSeccompFilter failed: %v", err)
	}

	if len(filter) < 5 {
		t.Errorf("filter too short for single syscall: %d instructions", len(filter))
	}
}

// TestBuildSeccompFilter_MultipleSyscalls tests building filter with multiple syscall rules.
func TestBuildSeccompFilter_MultipleSyscalls(t *testing.T) {
	config := &SeccompPolicy{
		DefaultAction: ActAllow,
		Syscalls: []SeccompRule{
			{
				Names:  []string{"write", "read"},
				Action: ActLog,
			},
			{
				Names:  []string{"execve"},
				Action: ActKillProcess,
			},
		},
	}

	filter, err := buildSeccompFilter(config)
	if err != nil {
		t.Fatalf("buildSeccompFilter failed: %v", err)
	}

	if len(filter) < 8 {
		t.Errorf("filter too short for multiple syscalls: %d instructions", len(filter))
	}
}

// TestBuildSeccompFilter_UnknownDefaultAction tests that unknown default action returns error.
func TestBuildSeccompFilter_UnknownDefaultAction(t *testing.T) {
	config := &SeccompPolicy{
		DefaultAction: "SCMP_ACT_INVALID",
	}

	_, err := buildSeccompFilter(config)
	if err == nil {
		t.Error("expected error for unknown default action")
	}
}

// TestBuildSeccompFilter_MultipleArches tests filter with multiple architectures.
func TestBuildSeccompFilter_MultipleArches(t *testing.T) {
	config := &SeccompPolicy{
		DefaultAction: ActAllow,
		Architectures: []SeccompArch{
			ArchX86_64,
			ArchX86,
		},
	}

	filter, err := buildSeccompFilter(config)
	if err != nil {
		t.Fatalf("buildSeccompFilter failed: %v", err)
	}

	if len(filter) < 4 {
		t.Errorf("filter too short for multiple arches: %d instructions", len(filter))
	}
}

// TestBuildSeccompFilter_UnknownArchFiltered tests that unknown arches are filtered.
func TestBuildSeccompFilter_UnknownArchFiltered(t *testing.T) {
	config := &SeccompPolicy{
		DefaultAction: ActAllow,
		Architectures: []SeccompArch{
			ArchX86_64,
			"SCMP_ARCH_UNKNOWN", // Should be filtered out
		},
	}

	filter, err := buildSeccompFilter(config)
	if err != nil {
		t.Fatalf("buildSeccompFilter failed: %v", err)
	}

	if len(filter) < 3 {
		t.Errorf("filter too short: %d instructions", len(filter))
	}
}

// TestBuildSeccompFilter_ErrnoWithValue tests errno action with custom value.
func TestBuildSeccompFilter_ErrnoWithValue(t *testing.T) {
	errnoVal := uint(1) // EPERM
	config := &SeccompPolicy{
		DefaultAction: ActAllow,
		Syscalls: []SeccompRule{
			{
				Names:    []string{"write"},
				Action:   ActErrno,
				ErrnoRet: &errnoVal,
			},
		},
	}

	filter, err := buildSeccompFilter(config)
	if err != nil {
		t.Fatalf("buildSeccompFilter failed: %v", err)
	}

	if len(filter) < 5 {
		t.Errorf("filter too short: %d instructions", len(filter))
	}
}

// ============================================================================
// BPF INSTRUCTION TESTS
// ============================================================================

// TestBpfStmt_Encoding tests that BPF statements are encoded correctly.
func TestBpfStmt_Encoding(t *testing.T) {
	tests := []struct {
		name string
		code uint16
		k    uint32
	}{
		{"load arch", BPF_LD | BPF_W | BPF_ABS, offsetArch},
		{"load nr", BPF_LD | BPF_W | BPF_ABS, offsetNR},
		{"ret allow", BPF_RET | BPF_K, SECCOMP_RET_ALLOW},
		{"ret kill", BPF_RET | BPF_K, SECCOMP_RET_KILL_PROCESS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := bpfStmt(tt.code, tt.k)
			if inst.Code != tt.code {
				t.Errorf("Code = %d, want %d", inst.Code, tt.code)
			}
			if inst.K != tt.k {
				t.Errorf("K = %d, want %d", inst.K, tt.k)
			}
			if inst.Jt != 0 || inst.Jf != 0 {
				t.Error("statement should have Jt=0 and Jf=0")
			}
		})
	}
}

// TestBpfJump_Encoding tests that BPF jumps are encoded correctly.
func TestBpfJump_Encoding(t *testing.T) {
	tests := []struct {
		name string
		code uint16
		k    uint32
		jt   uint8
		jf   uint8
	}{
		{"jeq arch", BPF_JMP | BPF_JEQ | BPF_K, AUDIT_ARCH_X86_64, 1, 0},
		{"jeq syscall", BPF_JMP | BPF_JEQ | BPF_K, 1, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := bpfJump(tt.code, tt.k, tt.jt, tt.jf)
			if inst.Code != tt.code {
				t.Errorf("Code = %d, want %d", inst.Code, tt.code)
			}
			if inst.K != tt.k {
				t.Errorf("K = %d, want %d", inst.K, tt.k)
			}
			if inst.Jt != tt.jt {
				t.Errorf("Jt = %d, want %d", inst.Jt, tt.jt)
			}
			if inst.Jf != tt.jf {
				t.Errorf("Jf = %d, want %d", inst.Jf, tt.jf)
			}
		})
	}
}

// ============================================================================
// ARCH JUMP CALCULATION TESTS
// ============================================================================

// TestArchJumpCalculation_SingleArch tests jump calculation with single architecture.
func TestArchJumpCalculation_SingleArch(t *testing.T) {
	config := &SeccompPolicy{
		DefaultAction: ActAllow,
		Architectures: []SeccompArch{ArchX86_64},
	}

	filter, err := buildSeccompFilter(config)
	if err != nil {
		t.Fatalf("buildSeccompFilter failed: %v", err)
	}

	if len(filter) < 4 {
		t.Fatalf("filter too short: %d", len(filter))
	}

	archCheckInst := filter[1]
	if archCheckInst.Jt != 1 {
		t.Errorf("single arch jt = %d, want 1", archCheckInst.Jt)
	}
}

// TestArchJumpCalculation_TwoArches tests jump calculation with two architectures.
func TestArchJumpCalculation_TwoArches(t *testing.T) {
	config := &SeccompPolicy{
		DefaultAction: ActAllow,
		Architectures: []SeccompArch{ArchX86_64, ArchX86},
	}

	filter, err := buildSeccompFilter(config)
	if err != nil {
		t.Fatalf("buildSeccompFilter failed: %v", err)
	}

	if len(filter) < 5 {
		t.Fatalf("filter too short: %d", len(filter))
	}

	firstArchCheck := filter[1]
	secondArchCheck := filter[2]

	if firstArchCheck.Jt != 2 {
		t.Errorf("first arch jt = %d, want 2", firstArchCheck.Jt)
	}
	if secondArchCheck.Jt != 1 {
		t.Errorf("second arch jt = %d, want 1", secondArchCheck.Jt)
	}
}

// TestArchJumpCalculation_WithUnknownArch tests that unknown arches don't break jump calculation.
func TestArchJumpCalculation_WithUnknownArch(t *testing.T) {
	config := &SeccompPolicy{
		DefaultAction: ActAllow,
		Architectures: []SeccompArch{
			ArchX86_64,
			"SCMP_ARCH_UNKNOWN", // Unknown - should be filtered
			ArchX86,
		},
	}

	filter, err := buildSeccompFilter(config)
	if err != nil {
		t.Fatalf("buildSeccompFilter failed: %v", err)
	}

	if len(filter) < 5 {
		t.Fatalf("filter too short: %d", len(filter))
	}

	firstArchCheck := filter[1]
	secondArchCheck := filter[2]

	if firstArchCheck.Jt != 2 {
		t.Errorf("first arch jt = %d, want 2 (unknown arch should be filtered)", firstArchCheck.Jt)
	}
	if secondArchCheck.Jt != 1 {
		t.Errorf("second arch jt = %d, want 1", secondArchCheck.Jt)
	}
}

// ============================================================================
// SETUP SECCOMP TESTS
// ============================================================================

// TestSetupSeccomp_TooManyUnrecognized tests that any unrecognized syscall name fails.
func TestSetupSeccomp_TooManyUnrecognized(t *testing.T) {
	config := &SeccompPolicy{
		DefaultAction: ActAllow,
		Syscalls: []SeccompRule{
			{
				Names:  []string{"totally_fake_syscall_1", "totally_fake_syscall_2", "totally_fake_syscall_3"},
				Action: ActLog,
			},
			{
				Names:  []string{"read"}, // Only one real syscall
				Action: ActAllow,
			},
		},
	}

	// This should fail because the policy names unrecognized syscalls
	err := SetupSeccomp(config)
	if err == nil {
		t.Error("expected error when syscalls are unrecognized")
	}
}

// TestSetupSeccomp_NilConfig tests that nil config returns no error.
func TestSetupSeccomp_NilConfig(t *testing.T) {
	err := SetupSeccomp(nil)
	if err != nil {
		t.Errorf("nil config should not error: %v", err)
	}
}

// TestSetupSeccomp_EmptySyscalls tests that empty syscalls config returns no error.
func TestSetupSeccomp_EmptySyscalls(t *testing.T) {
	config := &SeccompPolicy{
		DefaultAction: ActAllow,
		Syscalls:      []SeccompRule{},
	}

	err := SetupSeccomp(config)
	if err != nil {
		t.Errorf("empty syscalls should not error: %v", err)
	}
}

// ============================================================================
// DEFAULT POLICY TESTS
// ============================================================================

// TestDefaultSeccompPolicy_AllowsByDefault tests the default action is allow.
func TestDefaultSeccompPolicy_AllowsByDefault(t *testing.T) {
	policy := DefaultSeccompPolicy()
	if policy.DefaultAction != ActAllow {
		t.Errorf("DefaultAction = %s, want %s", policy.DefaultAction, ActAllow)
	}
}

// TestDefaultSeccompPolicy_DeniesUnconfinementSyscalls tests that the
// self-unconfinement syscalls are all denied with errno.
func TestDefaultSeccompPolicy_DeniesUnconfinementSyscalls(t *testing.T) {
	policy := DefaultSeccompPolicy()
	if len(policy.Syscalls) != 1 {
		t.Fatalf("expected a single syscall rule, got %d", len(policy.Syscalls))
	}

	rule := policy.Syscalls[0]
	if rule.Action != ActErrno {
		t.Errorf("rule action = %s, want %s", rule.Action, ActErrno)
	}

	denied := make(map[string]bool)
	for _, name := range rule.Names {
		denied[name] = true
	}

	for _, must := range []string{"ptrace", "mount", "umount2", "pivot_root", "reboot"} {
		if !denied[must] {
			t.Errorf("expected %s to be denied by default policy", must)
		}
	}
}

// TestDefaultSeccompPolicy_BuildsValidFilter tests the default policy
// compiles to a valid BPF program.
func TestDefaultSeccompPolicy_BuildsValidFilter(t *testing.T) {
	policy := DefaultSeccompPolicy()
	policy.Architectures = []SeccompArch{ArchX86_64}

	filter, err := buildSeccompFilter(policy)
	if err != nil {
		t.Fatalf("buildSeccompFilter(DefaultSeccompPolicy()) failed: %v", err)
	}
	if len(filter) < 5 {
		t.Errorf("filter too short: %d instructions", len(filter))
	}
}
