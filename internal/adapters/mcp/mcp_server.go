// Package mcp provides the MCP (Model Context Protocol) server implementation.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/xvierd/cadence/internal/domain"
	"github.com/xvierd/cadence/internal/ports"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

// Server implements the MCP server using mark3labs/mcp-go.
type Server struct {
	server        *server.MCPServer
	stateProvider ports.MCPStateProvider
	clock         domain.Clock
	timezone      string
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewServer creates a new MCP server instance. Dates passed to tools are
// read in the clock's timezone.
func NewServer(stateProvider ports.MCPStateProvider, clock domain.Clock) *Server {
	s := &Server{
		stateProvider: stateProvider,
		clock:         clock,
		timezone:      clock.Now().Timezone(),
	}

	s.server = server.NewMCPServer(
		"cadence",
		"1.0.0",
		server.WithLogging(),
	)

	s.registerTools()

	return s
}

// registerTools registers all available MCP tools.
func (s *Server) registerTools() {
	s.server.AddTool(
		mcp.NewTool(
			"get_snapshot",
			mcp.WithDescription("Get the current agenda: active and overdue instances, upcoming work, the next reminder and today's stats"),
			mcp.WithNumber(
				"upcoming",
				mcp.Description("Number of upcoming instances to include (default: 5)"),
			),
		),
		s.handleGetSnapshot,
	)

	s.server.AddTool(
		mcp.NewTool(
			"list_templates",
			mcp.WithDescription("List recurring task templates, optionally filtered by status"),
			mcp.WithString(
				"status",
				mcp.Description("Filter templates by status"),
				mcp.Enum("draft", "active", "paused", "archived"),
			),
		),
		s.handleListTemplates,
	)

	s.server.AddTool(
		mcp.NewTool(
			"list_instances",
			mcp.WithDescription("List scheduled task instances"),
			mcp.WithString(
				"template_id",
				mcp.Description("Only instances generated from this template"),
			),
			mcp.WithString(
				"status",
				mcp.Description("Filter instances by status"),
				mcp.Enum("pending", "in_progress", "completed", "cancelled"),
			),
			mcp.WithString(
				"from",
				mcp.Description("First day to include, as YYYY-MM-DD"),
			),
			mcp.WithString(
				"to",
				mcp.Description("Last day to include, as YYYY-MM-DD"),
			),
			mcp.WithNumber(
				"limit",
				mcp.Description("Maximum number of instances to return"),
			),
		),
		s.handleListInstances,
	)

	s.server.AddTool(
		mcp.NewTool(
			"generate_instances",
			mcp.WithDescription("Generate upcoming instances of an active template"),
			mcp.WithString(
				"template_id",
				mcp.Required(),
				mcp.Description("The ID of the template to expand"),
			),
			mcp.WithNumber(
				"count",
				mcp.Description("Number of occurrences to generate (default: configured maximum)"),
			),
		),
		s.handleGenerateInstances,
	)

	s.server.AddTool(
		mcp.NewTool(
			"complete_instance",
			mcp.WithDescription("Mark a task instance as completed"),
			mcp.WithString(
				"instance_id",
				mcp.Required(),
				mcp.Description("The ID of the instance to complete"),
			),
		),
		s.handleCompleteInstance,
	)

	s.server.AddTool(
		mcp.NewTool(
			"detect_conflicts",
			mcp.WithDescription("List open instances whose time overlaps the given instance"),
			mcp.WithString(
				"instance_id",
				mcp.Required(),
				mcp.Description("The ID of the instance to check"),
			),
		),
		s.handleDetectConflicts,
	)

	s.server.AddTool(
		mcp.NewTool(
			"next_reminder",
			mcp.WithDescription("Get the reminder that fires next"),
		),
		s.handleNextReminder,
	)
}

// Start begins serving MCP requests via stdio.
func (s *Server) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	return server.ServeStdio(s.server)
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// IsRunning returns true if the server is active.
func (s *Server) IsRunning() bool {
	if s.ctx == nil {
		return false
	}
	return s.ctx.Err() == nil
}

// Ensure Server implements ports.MCPHandler.
var _ ports.MCPHandler = (*Server)(nil)

// handleGetSnapshot handles the get_snapshot tool.
func (s *Server) handleGetSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	upcoming := int(request.GetFloat("upcoming", 5))
	if upcoming < 0 {
		return mcp.NewToolResultError("upcoming must not be negative"), nil
	}

	snap, err := s.stateProvider.GetSnapshot(ctx, upcoming)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	now := snap.Timestamp
	stats := snap.CurrentState.TodayStats
	result := map[string]interface{}{
		"timestamp": formatMoment(now),
		"active":    instanceList(snap.CurrentState.ActiveInstances, now),
		"overdue":   instanceList(snap.Overdue, now),
		"upcoming":  instanceList(snap.Upcoming, now),
		"today_stats": map[string]interface{}{
			"scheduled":       stats.Scheduled,
			"completed":       stats.Completed,
			"cancelled":       stats.Cancelled,
			"overdue":         stats.Overdue,
			"total_work_time": stats.TotalWorkTime.String(),
		},
		"next_reminder": nil,
	}
	if ref := snap.CurrentState.NextReminder; ref != nil {
		result["next_reminder"] = reminderData(ref)
	}

	return jsonResult(result)
}

// handleListTemplates handles the list_templates tool.
func (s *Server) handleListTemplates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var status *domain.TemplateStatus
	if raw := request.GetString("status", ""); raw != "" {
		st := domain.TemplateStatus(raw)
		status = &st
	}

	templates, err := s.stateProvider.ListTemplates(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	var list []map[string]interface{}
	for _, t := range templates {
		list = append(list, templateData(t))
	}

	result := map[string]interface{}{
		"templates":   list,
		"total_count": len(list),
	}
	if status != nil {
		result["filter_status"] = string(*status)
	}

	return jsonResult(result)
}

// handleListInstances handles the list_instances tool.
func (s *Server) handleListInstances(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := ports.InstanceFilter{
		TemplateID: request.GetString("template_id", ""),
		Limit:      int(request.GetFloat("limit", 0)),
	}
	if raw := request.GetString("status", ""); raw != "" {
		filter.Statuses = []domain.InstanceStatus{domain.InstanceStatus(raw)}
	}
	if raw := request.GetString("from", ""); raw != "" {
		from, err := s.parseDay(raw)
		if err != nil {
			return mcp.NewToolResultError("invalid from date: " + err.Error()), nil
		}
		from = from.StartOfDay()
		filter.From = &from
	}
	if raw := request.GetString("to", ""); raw != "" {
		to, err := s.parseDay(raw)
		if err != nil {
			return mcp.NewToolResultError("invalid to date: " + err.Error()), nil
		}
		to = to.EndOfDay()
		filter.To = &to
	}

	instances, err := s.stateProvider.ListInstances(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	now := s.clock.Now()
	list := instanceList(instances, now)
	return jsonResult(map[string]interface{}{
		"instances":   list,
		"total_count": len(list),
	})
}

// handleGenerateInstances handles the generate_instances tool.
func (s *Server) handleGenerateInstances(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templateID, err := request.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError("template_id is required: " + err.Error()), nil
	}

	count := 0
	if c := request.GetFloat("count", 0); c > 0 {
		count = int(c)
	} else if raw := request.GetString("count", ""); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			count = n
		}
	}

	report, err := s.stateProvider.GenerateInstances(ctx, templateID, count)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to generate instances: %v", err)), nil
	}

	created := make([]map[string]interface{}, 0, len(report.Instances))
	for _, inst := range report.Instances {
		data := instanceData(inst, inst.CreatedAt)
		if conflicts := report.Conflicts[inst.ID]; len(conflicts) > 0 {
			ids := make([]string, 0, len(conflicts))
			for _, c := range conflicts {
				ids = append(ids, c.ID)
			}
			data["conflicts_with"] = ids
		}
		created = append(created, data)
	}

	return jsonResult(map[string]interface{}{
		"template_id": templateID,
		"generated":   created,
		"skipped":     report.Skipped,
		"existing":    report.Existing,
		"truncated":   report.Truncated,
	})
}

// handleCompleteInstance handles the complete_instance tool.
func (s *Server) handleCompleteInstance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instanceID, err := request.RequireString("instance_id")
	if err != nil {
		return mcp.NewToolResultError("instance_id is required: " + err.Error()), nil
	}

	inst, err := s.stateProvider.CompleteInstance(ctx, instanceID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to complete instance: %v", err)), nil
	}

	return jsonResult(instanceData(inst, inst.UpdatedAt))
}

// handleDetectConflicts handles the detect_conflicts tool.
func (s *Server) handleDetectConflicts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instanceID, err := request.RequireString("instance_id")
	if err != nil {
		return mcp.NewToolResultError("instance_id is required: " + err.Error()), nil
	}

	conflicts, err := s.stateProvider.DetectConflicts(ctx, instanceID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to detect conflicts: %v", err)), nil
	}

	now := s.clock.Now()
	list := instanceList(conflicts, now)
	return jsonResult(map[string]interface{}{
		"instance_id": instanceID,
		"conflicts":   list,
		"total_count": len(list),
	})
}

// handleNextReminder handles the next_reminder tool.
func (s *Server) handleNextReminder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := s.stateProvider.NextReminder(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get next reminder: %v", err)), nil
	}

	if ref == nil {
		return jsonResult(map[string]interface{}{
			"reminder": nil,
			"message":  "No reminders scheduled",
		})
	}

	return jsonResult(map[string]interface{}{
		"reminder": reminderData(ref),
	})
}

func (s *Server) parseDay(raw string) (domain.Moment, error) {
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return domain.Moment{}, err
	}
	return domain.NewDate(t.Year(), t.Month(), t.Day(), s.timezone), nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

func formatMoment(m domain.Moment) string {
	if m.IsAllDay() {
		return m.Time().Format(time.DateOnly)
	}
	return m.Time().Format(timeLayout)
}

func templateData(t *domain.TaskTemplate) map[string]interface{} {
	return map[string]interface{}{
		"id":          t.ID,
		"title":       t.Title,
		"description": t.Description,
		"status":      string(t.Status),
		"recurrence":  domain.DescribeRule(t.Time.Recurrence),
		"start":       formatMoment(t.Time.Start),
		"alerts":      len(t.Reminders.Alerts),
		"stats": map[string]interface{}{
			"total":     t.Stats.TotalInstances,
			"completed": t.Stats.CompletedInstances,
		},
	}
}

func instanceData(inst *domain.TaskInstance, now domain.Moment) map[string]interface{} {
	data := map[string]interface{}{
		"id":        inst.ID,
		"title":     inst.Title,
		"status":    string(inst.EffectiveStatus(now)),
		"scheduled": formatMoment(inst.Time.Scheduled),
	}
	if inst.TemplateID != "" {
		data["template_id"] = inst.TemplateID
	}
	if inst.Description != "" {
		data["description"] = inst.Description
	}
	if inst.Time.End != nil {
		data["end"] = formatMoment(*inst.Time.End)
	}
	if inst.CompletedAt != nil {
		data["completed_at"] = formatMoment(*inst.CompletedAt)
	}
	if a, ok := inst.NextReminder(); ok {
		data["next_alert"] = formatMoment(a.FireTime())
	}
	return data
}

func instanceList(instances []*domain.TaskInstance, now domain.Moment) []map[string]interface{} {
	list := make([]map[string]interface{}, 0, len(instances))
	for _, inst := range instances {
		list = append(list, instanceData(inst, now))
	}
	return list
}

func reminderData(ref *domain.ReminderRef) map[string]interface{} {
	return map[string]interface{}{
		"instance_id": ref.InstanceID,
		"title":       ref.Title,
		"alert_id":    ref.Alert.ID,
		"channel":     string(ref.Alert.Spec.Channel),
		"message":     ref.Alert.Spec.Message,
		"status":      string(ref.Alert.Status),
		"fire_at":     formatMoment(ref.Alert.FireTime()),
	}
}
