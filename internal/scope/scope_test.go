package scope

import (
	"testing"

	"github.com/gofrs/uuid/v5"

	"github.com/unityaid/mobile-sync/internal/model"
)

func TestAccessibleSiteIDs_RoleMatrix(t *testing.T) {
	t.Parallel()

	site1 := uuid.Must(uuid.NewV4())
	site2 := uuid.Must(uuid.NewV4())
	other := uuid.Must(uuid.NewV4())

	for _, role := range []model.Role{model.RoleAdmin, model.RoleClusterLead, model.RoleUNUser} {
		u := &model.User{Role: role, AssignedSiteIDs: []uuid.UUID{site1}}
		if sc := AccessibleSiteIDs(u); sc != nil {
			t.Fatalf("role %s: want unrestricted scope, got %v", role, sc.IDs())
		}
	}

	official := &model.User{Role: model.RoleSiteOfficial, AssignedSiteIDs: []uuid.UUID{site1, site2}}
	sc := AccessibleSiteIDs(official)
	if sc == nil {
		t.Fatalf("site official: want restricted scope")
	}
	if got := sc.IDs(); len(got) != 2 {
		t.Fatalf("site official: want exactly assigned sites, got %v", got)
	}
	if !sc.Contains(site1) || !sc.Contains(site2) || sc.Contains(other) {
		t.Fatalf("site official scope membership wrong")
	}
}

func TestAccessibleSiteIDs_FailClosed(t *testing.T) {
	t.Parallel()

	for _, role := range []model.Role{model.RolePublic, model.RoleNGOUser, model.Role("intern"), model.Role("")} {
		u := &model.User{Role: role, AssignedSiteIDs: []uuid.UUID{uuid.Must(uuid.NewV4())}}
		sc := AccessibleSiteIDs(u)
		if sc == nil || !sc.Empty() {
			t.Fatalf("role %q: want empty scope, got %v", role, sc.IDs())
		}
		if sc.Contains(u.AssignedSiteIDs[0]) {
			t.Fatalf("role %q: empty scope must deny all ids", role)
		}
	}
}

func TestFilterSites(t *testing.T) {
	t.Parallel()

	site1 := model.Site{ID: uuid.Must(uuid.NewV4()), Name: "A"}
	site2 := model.Site{ID: uuid.Must(uuid.NewV4()), Name: "B"}
	all := []model.Site{site1, site2}

	admin := &model.User{Role: model.RoleAdmin}
	if got := FilterSites(all, admin); len(got) != 2 {
		t.Fatalf("admin filter must be identity, got %d records", len(got))
	}

	official := &model.User{Role: model.RoleSiteOfficial, AssignedSiteIDs: []uuid.UUID{site2.ID}}
	got := FilterSites(all, official)
	if len(got) != 1 || got[0].ID != site2.ID {
		t.Fatalf("official filter: want only assigned site, got %v", got)
	}

	nobody := &model.User{Role: model.RolePublic}
	if got := FilterSites(all, nobody); len(got) != 0 {
		t.Fatalf("public filter: want empty, got %d records", len(got))
	}
}
