package netattach

import "testing"

func TestKind_IfaceName(t *testing.T) {
	if got := Macvtap.ifaceName(); got != "vt0" {
		t.Errorf("Macvtap.ifaceName() = %q, want vt0", got)
	}
	if got := Macvlan.ifaceName(); got != "vl0" {
		t.Errorf("Macvlan.ifaceName() = %q, want vl0", got)
	}
}

func TestAttach_EmptyMasterIsNoop(t *testing.T) {
	if err := Attach(Macvtap, "", 1); err != nil {
		t.Errorf("Attach with empty master should be a no-op, got %v", err)
	}
}

func TestAttach_UnknownMasterFails(t *testing.T) {
	err := Attach(Macvlan, "iface-that-does-not-exist-xyz", 1)
	if err == nil {
		t.Error("expected error for nonexistent master interface")
	}
}

func TestAttachFromConfig_NeitherConfigured(t *testing.T) {
	if err := AttachFromConfig("", "", 1); err != nil {
		t.Errorf("expected no-op when neither iface configured, got %v", err)
	}
}

func TestAttachFromConfig_MacvtapTakesPriority(t *testing.T) {
	// Both set to a nonexistent master; the macvtap path should be the
	// one that runs (and fails on lookup), not a silent macvlan skip.
	err := AttachFromConfig("does-not-exist-vtap", "does-not-exist-vlan", 1)
	if err == nil {
		t.Fatal("expected lookup failure for nonexistent master")
	}
}
