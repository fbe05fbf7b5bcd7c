// internal/app/system/authz/capabilities.go
package authz

import (
	"fmt"

	"github.com/dalemusser/dashhub/internal/domain/models"
)

// Capability is an action a role may be permitted to perform.
type Capability uint8

const (
	ViewUsers Capability = 1 << iota
	EditUsers
	CreateUsers
	DeleteUsers
	AccessSettings
	ViewReports
)

// allCapabilities lists every capability in display order.
var allCapabilities = []Capability{
	ViewUsers,
	EditUsers,
	CreateUsers,
	DeleteUsers,
	AccessSettings,
	ViewReports,
}

func (c Capability) String() string {
	switch c {
	case ViewUsers:
		return "view_users"
	case EditUsers:
		return "edit_users"
	case CreateUsers:
		return "create_users"
	case DeleteUsers:
		return "delete_users"
	case AccessSettings:
		return "access_settings"
	case ViewReports:
		return "view_reports"
	}
	return fmt.Sprintf("capability(%d)", uint8(c))
}

// CapabilitySet is a bitset of capabilities.
type CapabilitySet uint8

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	var s CapabilitySet
	for _, c := range caps {
		s |= CapabilitySet(c)
	}
	return s
}

// Has reports whether the set contains c.
func (s CapabilitySet) Has(c Capability) bool {
	return s&CapabilitySet(c) != 0
}

// List returns the capabilities in the set in display order.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(allCapabilities))
	for _, c := range allCapabilities {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Names returns the string names of the capabilities in the set.
func (s CapabilitySet) Names() []string {
	caps := s.List()
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = c.String()
	}
	return out
}

var (
	adminCaps  = NewCapabilitySet(allCapabilities...)
	editorCaps = NewCapabilitySet(ViewUsers, EditUsers, ViewReports)
	viewerCaps = NewCapabilitySet(ViewUsers)
)

// CapabilitiesOf returns the capability set granted to role.
// Unknown roles get the empty set.
func CapabilitiesOf(role models.Role) CapabilitySet {
	switch role {
	case models.RoleAdmin:
		return adminCaps
	case models.RoleEditor:
		return editorCaps
	case models.RoleViewer:
		return viewerCaps
	}
	return 0
}

// Can reports whether role grants c.
func Can(role models.Role, c Capability) bool {
	return CapabilitiesOf(role).Has(c)
}
