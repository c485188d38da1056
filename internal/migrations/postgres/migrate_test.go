package postgres

import (
	"sort"
	"strings"
	"testing"
)

func TestMigrationsAreOrderedAndUnique(t *testing.T) {
	seen := make(map[string]bool, len(Migrations))
	names := make([]string, 0, len(Migrations))
	for _, m := range Migrations {
		if m.Name == "" || strings.TrimSpace(m.SQL) == "" {
			t.Fatalf("migration %q has empty name or SQL", m.Name)
		}
		if seen[m.Name] {
			t.Fatalf("duplicate migration %q", m.Name)
		}
		seen[m.Name] = true
		names = append(names, m.Name)
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("migrations out of order: %v", names)
	}
}

func TestReservationsExclusionConstraints(t *testing.T) {
	var sql string
	for _, m := range Migrations {
		if m.Name == "0002_reservations" {
			sql = m.SQL
		}
	}
	if sql == "" {
		t.Fatal("reservations migration not found")
	}

	for _, want := range []string{
		"reservations_staff_no_overlap",
		"reservations_location_no_overlap",
		"tstzrange(start_at, end_at, '[)')",
		"status IN ('pending', 'confirmed')",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("reservations migration missing %q", want)
		}
	}
}
