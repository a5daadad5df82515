// Package scope derives the set of site ids a user may see from its role and
// site assignments. The entire role matrix lives here; endpoints must not
// re-derive role logic.
package scope

import (
	"github.com/gofrs/uuid/v5"

	"github.com/unityaid/mobile-sync/internal/model"
)

// Scope is a set of accessible site ids. A nil *Scope means unrestricted.
type Scope struct {
	ids map[uuid.UUID]struct{}
}

// NewScope builds a restricted scope over the given ids.
func NewScope(ids []uuid.UUID) *Scope {
	s := &Scope{ids: make(map[uuid.UUID]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is inside the scope.
func (s *Scope) Contains(id uuid.UUID) bool {
	if s == nil {
		return true
	}
	_, ok := s.ids[id]
	return ok
}

// Empty reports whether the scope denies everything.
func (s *Scope) Empty() bool { return s != nil && len(s.ids) == 0 }

// IDs returns the scoped ids in unspecified order, or nil when unrestricted.
func (s *Scope) IDs() []uuid.UUID {
	if s == nil {
		return nil
	}
	out := make([]uuid.UUID, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out
}

// AccessibleSiteIDs maps a user to its site scope. nil means unrestricted.
//
// Role matrix: admin, cluster_lead and un_user are unrestricted;
// site officials see exactly their assigned sites; every other role,
// including unrecognized ones, is denied (fail-closed). ngo_user is
// deliberately in the fail-closed bucket: organization-level visibility is a
// wider policy than this subsystem can verify.
func AccessibleSiteIDs(u *model.User) *Scope {
	switch u.Role {
	case model.RoleAdmin, model.RoleClusterLead, model.RoleUNUser:
		return nil
	case model.RoleSiteOfficial:
		return NewScope(u.AssignedSiteIDs)
	default:
		return NewScope(nil)
	}
}

// FilterSites applies the user's scope to a record slice deterministically.
// Unrestricted users get the input back unchanged.
func FilterSites(sites []model.Site, u *model.User) []model.Site {
	sc := AccessibleSiteIDs(u)
	if sc == nil {
		return sites
	}
	out := make([]model.Site, 0, len(sites))
	for _, s := range sites {
		if sc.Contains(s.ID) {
			out = append(out, s)
		}
	}
	return out
}
