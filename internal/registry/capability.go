package registry

import (
	"net/http"

	"github.com/inkwell-notes/inkwell/internal/events"
)

// CapabilityType identifies one kind of extension point.
type CapabilityType string

const (
	CapabilityRouter       CapabilityType = "router"
	CapabilityStorage      CapabilityType = "storage"
	CapabilityEventHook    CapabilityType = "event-hook"
	CapabilitySidebarPanel CapabilityType = "sidebar-panel"
	CapabilitySlashCommand CapabilityType = "slash-command"
)

// Capability is one typed extension point a plugin claims. The concrete
// variants below form a closed set; conflict detection lives in conflictKey
// so adding a variant forces updating that switch.
type Capability interface {
	Type() CapabilityType
}

// RouterCapability contributes an endpoint namespace to the served API.
// Namespace is the conflict key: two plugins cannot claim the same one.
type RouterCapability struct {
	Namespace string
	Handler   http.Handler
}

func (RouterCapability) Type() CapabilityType { return CapabilityRouter }

// StorageCapability declares the keys a plugin intends to use in its
// namespaced key/value store. Storage is already isolated per plugin id, so
// this capability never conflicts.
type StorageCapability struct {
	Keys []string
}

func (StorageCapability) Type() CapabilityType { return CapabilityStorage }

// EventHookCapability declares the domain events a plugin handles. Multiple
// plugins may hook the same event, so event hooks never conflict.
type EventHookCapability struct {
	Events []events.Type
}

func (EventHookCapability) Type() CapabilityType { return CapabilityEventHook }

// SidebarPanelCapability contributes a UI panel slot. ID is the conflict key.
type SidebarPanelCapability struct {
	ID       string
	Label    string
	Icon     string
	Priority int
}

func (SidebarPanelCapability) Type() CapabilityType { return CapabilitySidebarPanel }

// SlashCommandCapability contributes an editor command. Command is the
// conflict key.
type SlashCommandCapability struct {
	Command     string
	Label       string
	Description string
}

func (SlashCommandCapability) Type() CapabilityType { return CapabilitySlashCommand }

// conflictKey returns the identifier used to detect duplicate claims within a
// capability type. The second return is false for variants that never
// conflict. The switch is exhaustive over the capability set.
func conflictKey(c Capability) (string, bool) {
	switch c := c.(type) {
	case RouterCapability:
		return c.Namespace, true
	case SidebarPanelCapability:
		return c.ID, true
	case SlashCommandCapability:
		return c.Command, true
	case StorageCapability:
		// Namespaced per plugin id, shared keys cannot collide.
		return "", false
	case EventHookCapability:
		return "", false
	default:
		return "", false
	}
}
