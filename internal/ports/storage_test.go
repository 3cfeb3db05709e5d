package ports

import (
	"testing"
	"time"

	"github.com/xvierd/cadence/internal/domain"
)

func instanceAt(templateID string, status domain.InstanceStatus, day int) *domain.TaskInstance {
	scheduled := domain.NewMoment(2025, time.March, day, 9, 0, "UTC")
	inst := domain.NewInstance(templateID, "task", domain.InstanceTimeConfig{Scheduled: scheduled}, scheduled)
	inst.Status = status
	return inst
}

func TestInstanceFilter_Matches(t *testing.T) {
	from := domain.NewMoment(2025, time.March, 5, 9, 0, "UTC")
	to := domain.NewMoment(2025, time.March, 10, 9, 0, "UTC")

	tests := []struct {
		name   string
		filter InstanceFilter
		inst   *domain.TaskInstance
		want   bool
	}{
		{"empty filter", InstanceFilter{}, instanceAt("a", domain.StatusCancelled, 1), true},
		{"template match", InstanceFilter{TemplateID: "a"}, instanceAt("a", domain.StatusPending, 1), true},
		{"template mismatch", InstanceFilter{TemplateID: "b"}, instanceAt("a", domain.StatusPending, 1), false},
		{"open includes in progress", OpenInstances(), instanceAt("a", domain.StatusInProgress, 1), true},
		{"open excludes completed", OpenInstances(), instanceAt("a", domain.StatusCompleted, 1), false},
		{"range lower bound inclusive", InstanceFilter{From: &from, To: &to}, instanceAt("a", domain.StatusPending, 5), true},
		{"range upper bound inclusive", InstanceFilter{From: &from, To: &to}, instanceAt("a", domain.StatusPending, 10), true},
		{"before range", InstanceFilter{From: &from}, instanceAt("a", domain.StatusPending, 4), false},
		{"after range", InstanceFilter{To: &to}, instanceAt("a", domain.StatusPending, 11), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.inst); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReminder_Key(t *testing.T) {
	at := domain.NewMoment(2025, time.March, 5, 8, 30, "UTC")
	r := Reminder{InstanceID: "i1", AlertID: "a1", FireAt: at}

	if got, want := r.Key(), "i1/a1@20250305T083000"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
	later := r
	later.FireAt = at.AddMinutes(10)
	if r.Key() == later.Key() {
		t.Error("a snoozed alert firing again should get a new key")
	}
}
