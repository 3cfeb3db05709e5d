package domain

import (
	"sort"
	"time"
)

// CurrentState represents what is going on right now.
type CurrentState struct {
	ActiveInstances []*TaskInstance
	NextReminder    *ReminderRef
	TodayStats      DailyStats
}

// ReminderRef points at one alert of one instance.
type ReminderRef struct {
	InstanceID string
	Title      string
	Alert      AlertState
}

// DailyStats aggregates instance counts for a day.
type DailyStats struct {
	Date          Moment
	Scheduled     int
	Completed     int
	Cancelled     int
	Overdue       int
	TotalWorkTime time.Duration
}

// StateSnapshot captures the complete system state at a point in time.
type StateSnapshot struct {
	Timestamp    Moment
	CurrentState CurrentState
	Upcoming     []*TaskInstance
	Overdue      []*TaskInstance
}

// HasActiveWork returns true if any instance is in progress.
func (cs *CurrentState) HasActiveWork() bool {
	return len(cs.ActiveInstances) > 0
}

// BuildCurrentState summarizes instances as seen at now.
func BuildCurrentState(instances []*TaskInstance, now Moment) CurrentState {
	cs := CurrentState{TodayStats: BuildDailyStats(now, instances, now)}
	for _, inst := range instances {
		if inst.Status == StatusInProgress {
			cs.ActiveInstances = append(cs.ActiveInstances, inst)
		}
		if inst.Status.IsTerminal() {
			continue
		}
		if a, ok := inst.NextReminder(); ok {
			if cs.NextReminder == nil || a.FireTime().Before(cs.NextReminder.Alert.FireTime()) {
				cs.NextReminder = &ReminderRef{InstanceID: inst.ID, Title: inst.Title, Alert: a}
			}
		}
	}
	return cs
}

// BuildDailyStats counts the instances scheduled on day's calendar date.
func BuildDailyStats(day Moment, instances []*TaskInstance, now Moment) DailyStats {
	stats := DailyStats{Date: day.StartOfDay()}
	from, to := day.StartOfDay(), day.EndOfDay()
	for _, inst := range instances {
		if !inst.Time.Scheduled.Within(from, to) {
			continue
		}
		stats.Scheduled++
		switch inst.EffectiveStatus(now) {
		case StatusCompleted:
			stats.Completed++
			if d, ok := inst.ActualDuration(); ok {
				stats.TotalWorkTime += d
			}
		case StatusCancelled:
			stats.Cancelled++
		case StatusOverdue:
			stats.Overdue++
		}
	}
	return stats
}

// BuildSnapshot assembles a snapshot with up to limit upcoming instances.
func BuildSnapshot(instances []*TaskInstance, now Moment, limit int) StateSnapshot {
	snap := StateSnapshot{Timestamp: now, CurrentState: BuildCurrentState(instances, now)}
	for _, inst := range instances {
		switch inst.EffectiveStatus(now) {
		case StatusOverdue:
			snap.Overdue = append(snap.Overdue, inst)
		case StatusPending:
			snap.Upcoming = append(snap.Upcoming, inst)
		}
	}
	sort.SliceStable(snap.Upcoming, func(i, j int) bool {
		return snap.Upcoming[i].Time.Scheduled.Before(snap.Upcoming[j].Time.Scheduled)
	})
	if limit > 0 && len(snap.Upcoming) > limit {
		snap.Upcoming = snap.Upcoming[:limit]
	}
	return snap
}

// StatusLabel returns a human-readable label for an instance status.
func StatusLabel(s InstanceStatus) string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	case StatusOverdue:
		return "Overdue"
	default:
		return "Unknown"
	}
}

// TemplateStatusLabel returns a human-readable label for a template status.
func TemplateStatusLabel(s TemplateStatus) string {
	switch s {
	case TemplateDraft:
		return "Draft"
	case TemplateActive:
		return "Active"
	case TemplatePaused:
		return "Paused"
	case TemplateArchived:
		return "Archived"
	default:
		return "Unknown"
	}
}
