// Package netattach implements the net-namespace attachment hook: after
// a child has been cloned with a fresh network namespace, it creates a
// macvlan or macvtap virtual interface on the requested master and
// moves it into the child's namespace.
package netattach

import (
	"fmt"

	"github.com/vishvananda/netlink"

	cerrors "njail-go/errors"
)

// Kind selects the virtual interface type to create.
type Kind int

const (
	// Macvtap presents as a tap device; the child can open its file
	// descriptor directly for raw L2 frames.
	Macvtap Kind = iota
	// Macvlan presents as an ordinary network interface inside the
	// child's namespace.
	Macvlan
)

// ifaceName is the fixed name the new link is given inside the child.
func (k Kind) ifaceName() string {
	if k == Macvtap {
		return "vt0"
	}
	return "vl0"
}

// Attach creates a virtual link of the given kind whose master is
// masterIface, and moves it into the network namespace of pid. Any
// netlink failure is wrapped in cerrors.ErrNetAttachFailed and must be
// treated as non-fatal by the caller: the child still runs, only
// without the requested interface.
func Attach(kind Kind, masterIface string, pid int) error {
	if masterIface == "" {
		return nil
	}

	master, err := netlink.LinkByName(masterIface)
	if err != nil {
		return fmt.Errorf("%w: lookup master %q: %v", cerrors.ErrNetAttachFailed, masterIface, err)
	}

	attrs := netlink.NewLinkAttrs()
	attrs.Name = kind.ifaceName()
	attrs.ParentIndex = master.Attrs().Index

	var link netlink.Link
	switch kind {
	case Macvtap:
		link = &netlink.Macvtap{
			Macvlan: netlink.Macvlan{
				LinkAttrs: attrs,
				Mode:      netlink.MACVLAN_MODE_BRIDGE,
			},
		}
	case Macvlan:
		link = &netlink.Macvlan{
			LinkAttrs: attrs,
			Mode:      netlink.MACVLAN_MODE_BRIDGE,
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", cerrors.ErrNetAttachFailed, kind)
	}

	if err := netlink.LinkAdd(link); err != nil {
		return fmt.Errorf("%w: create %s on %q: %v", cerrors.ErrNetAttachFailed, attrs.Name, masterIface, err)
	}

	if err := netlink.LinkSetNsPid(link, pid); err != nil {
		netlink.LinkDel(link)
		return fmt.Errorf("%w: move %s to pid %d netns: %v", cerrors.ErrNetAttachFailed, attrs.Name, pid, err)
	}

	return nil
}

// AttachFromConfig attaches whichever of macvtap/macvlan was configured
// (at most one is expected; macvtap takes priority if both are set).
func AttachFromConfig(macvtapIface, macvlanIface string, pid int) error {
	if macvtapIface != "" {
		return Attach(Macvtap, macvtapIface, pid)
	}
	if macvlanIface != "" {
		return Attach(Macvlan, macvlanIface, pid)
	}
	return nil
}
