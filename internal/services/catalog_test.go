package services

import (
	"net/http"
	"testing"

	"github.com/teamsync/backend/internal/models"
	"gorm.io/gorm"
)

func TestCatalog_ListRoles(t *testing.T) {
	env := newTestEnv(t)

	roles, err := env.catalog.ListRoles()
	if err != nil {
		t.Fatalf("ListRoles() error = %v", err)
	}
	if len(roles) != len(models.DefaultRoles()) {
		t.Fatalf("expected %d roles, got %d", len(models.DefaultRoles()), len(roles))
	}
	for i := 1; i < len(roles); i++ {
		if roles[i-1].Name > roles[i].Name {
			t.Errorf("roles not ordered by name: %q before %q", roles[i-1].Name, roles[i].Name)
		}
	}
}

func TestCatalog_ResolveRole(t *testing.T) {
	env := newTestEnv(t)
	seeded := roleByValue(t, env.db, "designer")

	got, err := env.catalog.ResolveRole(nil, &seeded.ID, "")
	if err != nil || got.ID != seeded.ID {
		t.Fatalf("ResolveRole(id) = %v, %v", got, err)
	}

	got, err = env.catalog.ResolveRole(nil, nil, "  designer ")
	if err != nil {
		t.Fatalf("ResolveRole(existing name) error = %v", err)
	}
	if got.ID != seeded.ID {
		t.Errorf("existing role should be reused, got id %d", got.ID)
	}

	created, err := env.catalog.ResolveRole(nil, nil, "Data Scientist")
	if err != nil {
		t.Fatalf("ResolveRole(new name) error = %v", err)
	}
	if created.Value != "data_scientist" || created.IsDefault {
		t.Errorf("created role = %+v", created)
	}
	again, err := env.catalog.ResolveRole(nil, nil, "data scientist")
	if err != nil || again.ID != created.ID {
		t.Errorf("second resolve should reuse %d, got %v, %v", created.ID, again, err)
	}

	_, err = env.catalog.ResolveRole(nil, uintPtr(9999), "")
	expectStatus(t, err, http.StatusNotFound)

	_, err = env.catalog.ResolveRole(nil, nil, " !! ")
	expectStatus(t, err, http.StatusBadRequest)
}

func TestCatalog_ResolveRoleInsideTransaction(t *testing.T) {
	env := newTestEnv(t)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		_, err := env.catalog.ResolveRole(tx, nil, "Security Engineer")
		return err
	})
	if err != nil {
		t.Fatalf("transaction error = %v", err)
	}
	var count int64
	env.db.Model(&models.Role{}).Where("value = ?", "security_engineer").Count(&count)
	if count != 1 {
		t.Errorf("expected role to be committed, count = %d", count)
	}
}

func TestCatalog_ResolveSkillScopes(t *testing.T) {
	env := newTestEnv(t)
	engineer := roleByValue(t, env.db, "software_engineer")
	designer := roleByValue(t, env.db, "designer")
	general := createSkill(t, env.db, "Communication", nil)
	scoped := createSkill(t, env.db, "Go", &engineer.ID)

	got, err := env.catalog.ResolveSkill(nil, nil, "go", &engineer.ID)
	if err != nil || got.ID != scoped.ID {
		t.Errorf("role scope lookup = %v, %v; expected %d", got, err, scoped.ID)
	}

	got, err = env.catalog.ResolveSkill(nil, nil, "communication", &designer.ID)
	if err != nil || got.ID != general.ID {
		t.Errorf("general fallback = %v, %v; expected %d", got, err, general.ID)
	}

	// "Go" under another role is a different skill.
	other, err := env.catalog.ResolveSkill(nil, nil, "Go", &designer.ID)
	if err != nil {
		t.Fatalf("ResolveSkill() error = %v", err)
	}
	if other.ID == scoped.ID || other.RoleID == nil || *other.RoleID != designer.ID {
		t.Errorf("expected a new designer-scoped skill, got %+v", other)
	}

	_, err = env.catalog.ResolveSkill(nil, nil, "   ", nil)
	expectStatus(t, err, http.StatusBadRequest)

	_, err = env.catalog.ResolveSkill(nil, uintPtr(9999), "", nil)
	expectStatus(t, err, http.StatusNotFound)
}

func TestCatalog_ListSkills(t *testing.T) {
	env := newTestEnv(t)
	engineer := roleByValue(t, env.db, "software_engineer")
	designer := roleByValue(t, env.db, "designer")
	createSkill(t, env.db, "Go", &engineer.ID)
	createSkill(t, env.db, "Figma", &designer.ID)
	createSkill(t, env.db, "Git", nil)
	createSkill(t, env.db, "100%_coverage", nil)

	tests := []struct {
		name     string
		req      *SkillListRequest
		expected []string
	}{
		{"all", &SkillListRequest{}, []string{"100%_coverage", "Figma", "Git", "Go"}},
		{"role and general", &SkillListRequest{RoleID: &engineer.ID}, []string{"100%_coverage", "Git", "Go"}},
		{"search", &SkillListRequest{Search: "g"}, []string{"100%_coverage", "Figma", "Git", "Go"}},
		{"search is case-insensitive", &SkillListRequest{Search: "GI"}, []string{"Git"}},
		{"wildcards are literal", &SkillListRequest{Search: "%_"}, []string{"100%_coverage"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skills, err := env.catalog.ListSkills(tt.req)
			if err != nil {
				t.Fatalf("ListSkills() error = %v", err)
			}
			var names []string
			for _, s := range skills {
				names = append(names, s.Name)
			}
			if len(names) != len(tt.expected) {
				t.Fatalf("names = %v, expected %v", names, tt.expected)
			}
			for i := range names {
				if names[i] != tt.expected[i] {
					t.Errorf("names = %v, expected %v", names, tt.expected)
					break
				}
			}
		})
	}
}
