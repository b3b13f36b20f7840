package roles

import "testing"

func TestRoleNamesAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range []string{RoleMonitoring, RoleNotification, RoleIntegration} {
		if r == "" {
			t.Fatal("empty role name")
		}
		if seen[r] {
			t.Errorf("duplicate role name %q", r)
		}
		seen[r] = true
	}
}
