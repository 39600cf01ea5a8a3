package conflict

import (
	"testing"
	"time"

	"github.com/hochfrequenz/tasklink/internal/domain"
)

func TestResolve(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	earlier := base.Add(-time.Minute)
	later := base.Add(time.Minute)
	sameInstant := base.In(time.FixedZone("ICT", 7*60*60))

	tests := []struct {
		name   string
		local  *time.Time
		remote *time.Time
		want   domain.Side
	}{
		{"local newer", &later, &base, domain.SideLocal},
		{"remote newer", &earlier, &base, domain.SideRemote},
		{"equal", &base, &base, domain.SideLocal},
		{"equal across zones", &base, &sameInstant, domain.SideLocal},
		{"local missing", nil, &later, domain.SideLocal},
		{"remote missing", &earlier, nil, domain.SideLocal},
		{"both missing", nil, nil, domain.SideLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.local, tt.remote); got != tt.want {
				t.Errorf("Resolve() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResolve_Deterministic(t *testing.T) {
	a := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b := a.Add(time.Second)
	first := Resolve(&a, &b)
	for i := 0; i < 100; i++ {
		if got := Resolve(&a, &b); got != first {
			t.Fatalf("Resolve changed answer on iteration %d: %s != %s", i, got, first)
		}
	}
}
