package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/chronoquest/chronoquest"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server with ChronoQuest tools.
type Server struct {
	client    *chronoquest.Client
	mcpServer *server.MCPServer
	refs      *QuestRefs // Q1, Q2, ... handed out by quest_today
}

// ToolResult represents the result of a tool call.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolInfo represents a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server with ChronoQuest tools registered. The
// client's open session, if any, is used for every call.
func NewServer(client *chronoquest.Client) *Server {
	s := &Server{
		client: client,
		refs:   NewQuestRefs(),
	}

	s.mcpServer = server.NewMCPServer(
		"chronoquest",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// Run serves MCP over stdin/stdout until the input closes.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// HandleMessage processes a raw JSON-RPC message and returns a response.
// This is primarily for testing the MCP protocol layer.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, message)
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: "quest_today", Description: "List today's open quests with session refs (Q1, Q2, ...) and XP previews"},
		{Name: "quest_complete", Description: "Complete a quest by session ref or task id"},
		{Name: "quest_counter", Description: "Adjust today's counter of a count quest"},
		{Name: "quest_sync", Description: "Replay operations saved while offline"},
		{Name: "quest_status", Description: "Show level, XP, streak and pending operations"},
		{Name: "quest_story", Description: "Show the current and next story chapter with unlock requirements"},
	}
}

// CallTool executes a tool by name with the given arguments.
// This is used for testing and direct invocation.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	switch name {
	case "quest_today":
		return s.handleToday(ctx, args)
	case "quest_complete":
		return s.handleComplete(ctx, args)
	case "quest_counter":
		return s.handleCounter(ctx, args)
	case "quest_sync":
		return s.handleSync(ctx, args)
	case "quest_status":
		return s.handleStatus(ctx, args)
	case "quest_story":
		return s.handleStory(ctx, args)
	default:
		return &ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}, nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("quest_today",
		mcp.WithDescription("List today's open quests. Each quest gets a session reference (Q1, Q2, ...) usable with quest_complete and quest_counter. XP previews account for today's fatigue."),
		mcp.WithBoolean("refresh",
			mcp.Description("Reload from the server first (default: true)"),
		),
	), s.wrap(s.handleToday))

	s.mcpServer.AddTool(mcp.NewTool("quest_complete",
		mcp.WithDescription("Complete a quest. Works offline: the completion is saved and synced later, without bonus XP or coins."),
		mcp.WithString("quest",
			mcp.Description("Session ref (Q1) or task id"),
			mcp.Required(),
		),
		mcp.WithString("fatigue_item",
			mcp.Description("Inventory item id of a fatigue_reduce consumable to use"),
		),
		mcp.WithString("xp_item",
			mcp.Description("Inventory item id of an xp_boost consumable to use"),
		),
	), s.wrap(s.handleComplete))

	s.mcpServer.AddTool(mcp.NewTool("quest_counter",
		mcp.WithDescription("Add to (or subtract from) today's counter of a count quest."),
		mcp.WithString("quest",
			mcp.Description("Session ref (Q1) or task id"),
			mcp.Required(),
		),
		mcp.WithNumber("delta",
			mcp.Description("Amount to add; negative subtracts (default: 1)"),
		),
	), s.wrap(s.handleCounter))

	s.mcpServer.AddTool(mcp.NewTool("quest_sync",
		mcp.WithDescription("Replay operations saved while offline. Safe to call at any time."),
	), s.wrap(s.handleSync))

	s.mcpServer.AddTool(mcp.NewTool("quest_status",
		mcp.WithDescription("Show the player's level, XP progress, coins, streak and pending offline operations."),
	), s.wrap(s.handleStatus))

	s.mcpServer.AddTool(mcp.NewTool("quest_story",
		mcp.WithDescription("Show the current story chapter and what is needed to unlock the next one."),
	), s.wrap(s.handleStory))
}

type handler func(ctx context.Context, args map[string]any) (*ToolResult, error)

func (s *Server) wrap(h handler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := h(ctx, req.GetArguments())
		if err != nil {
			return nil, err
		}
		return toMCPResult(result), nil
	}
}

func toMCPResult(r *ToolResult) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: r.Content,
			},
		},
	}
	if r.IsError {
		result.IsError = true
	}
	return result
}

func errorResult(format string, args ...any) *ToolResult {
	return &ToolResult{Content: fmt.Sprintf(format, args...), IsError: true}
}

func (s *Server) session() (*chronoquest.Session, *ToolResult) {
	sess := s.client.Session()
	if sess == nil {
		return nil, errorResult("not signed in: run `chronoquest login` first")
	}
	return sess, nil
}

// resolveQuest accepts a session ref or a task id.
func (s *Server) resolveQuest(sess *chronoquest.Session, args map[string]any) (chronoquest.Task, *ToolResult) {
	raw, _ := args["quest"].(string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return chronoquest.Task{}, errorResult("quest is required")
	}
	id := raw
	if ref, ok := s.refs.Resolve(raw); ok {
		if ref.UserID != sess.UserID() {
			return chronoquest.Task{}, errorResult("%s belongs to another session; run quest_today again", raw)
		}
		id = ref.TaskID
	}
	task, err := sess.Task(id)
	if err != nil {
		return chronoquest.Task{}, errorResult("unknown quest %q", raw)
	}
	return task, nil
}

// Internal handlers

func (s *Server) handleToday(ctx context.Context, args map[string]any) (*ToolResult, error) {
	sess, res := s.session()
	if res != nil {
		return res, nil
	}
	refresh := true
	if v, ok := args["refresh"].(bool); ok {
		refresh = v
	}
	if refresh {
		if err := sess.Refresh(ctx); err != nil {
			return errorResult("refresh failed: %v", err), nil
		}
	}

	now := s.client.Config().Now()
	remaining := sess.RemainingToday(now)
	if len(remaining) == 0 {
		return &ToolResult{Content: "All quests for today are done."}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d quest(s) left today:\n\n", len(remaining))
	for i, t := range remaining {
		ref := s.refs.Track(sess.UserID(), t.ID)
		preview, _ := sess.Preview(t.ID, i)
		fmt.Fprintf(&sb, "[%s] %s (%s, %s)\n", ref, t.Title, t.Category, t.Repeat())
		fmt.Fprintf(&sb, "    XP: %d (base %d)\n", preview.Total, preview.Base)
		if t.RequiresCount {
			fmt.Fprintf(&sb, "    Progress: %d/%d %s\n", sess.Counter(t.ID), t.Target(), t.Unit)
		}
		if t.DueDate != "" {
			fmt.Fprintf(&sb, "    Due: %s\n", t.DueDate)
		}
	}
	if n := len(sess.PendingOps()); n > 0 {
		fmt.Fprintf(&sb, "\n%d operation(s) waiting to sync.\n", n)
	}
	sb.WriteString("\nUse quest_complete with a ref (Q1, Q2, ...) to finish a quest.")
	return &ToolResult{Content: sb.String()}, nil
}

func (s *Server) handleComplete(ctx context.Context, args map[string]any) (*ToolResult, error) {
	sess, res := s.session()
	if res != nil {
		return res, nil
	}
	task, res := s.resolveQuest(sess, args)
	if res != nil {
		return res, nil
	}

	opts := chronoquest.CompleteOptions{}
	opts.FatigueItemID, _ = args["fatigue_item"].(string)
	opts.XPItemID, _ = args["xp_item"].(string)

	result, err := sess.CompleteTask(ctx, task.ID, opts)
	switch {
	case errors.Is(err, chronoquest.ErrAlreadyCompleted):
		return errorResult("%q is already completed", task.Title), nil
	case errors.Is(err, chronoquest.ErrCountNotReached):
		return errorResult("%q has not reached its target: %d/%d %s", task.Title, sess.Counter(task.ID), task.Target(), task.Unit), nil
	case err != nil:
		return errorResult("complete failed: %v", err), nil
	}
	return &ToolResult{Content: formatCompletion(task, result)}, nil
}

func (s *Server) handleCounter(ctx context.Context, args map[string]any) (*ToolResult, error) {
	sess, res := s.session()
	if res != nil {
		return res, nil
	}
	task, res := s.resolveQuest(sess, args)
	if res != nil {
		return res, nil
	}
	if !task.RequiresCount {
		return errorResult("%q is not a count quest", task.Title), nil
	}
	delta := 1
	if d, ok := args["delta"].(float64); ok {
		delta = int(d)
	}

	next, outcome, err := sess.AdjustCounter(ctx, task.ID, delta)
	if err != nil {
		return errorResult("counter update failed: %v", err), nil
	}
	msg := fmt.Sprintf("%s: %d/%d %s", task.Title, next, task.Target(), task.Unit)
	if outcome == chronoquest.OutcomeQueued {
		msg += " (saved offline, will sync)"
	}
	if next >= task.Target() {
		msg += "\nTarget reached; the quest can be completed."
	}
	return &ToolResult{Content: msg}, nil
}

func (s *Server) handleSync(ctx context.Context, _ map[string]any) (*ToolResult, error) {
	sess, res := s.session()
	if res != nil {
		return res, nil
	}
	result := sess.Drain(ctx)
	return &ToolResult{Content: formatDrain(result)}, nil
}

func (s *Server) handleStatus(ctx context.Context, _ map[string]any) (*ToolResult, error) {
	sess, res := s.session()
	if res != nil {
		return res, nil
	}
	if err := sess.Refresh(ctx); err != nil {
		return errorResult("refresh failed: %v", err), nil
	}

	var sb strings.Builder
	if p := sess.Profile(); p != nil {
		prog := sess.Progress()
		fmt.Fprintf(&sb, "%s, level %d\n", p.DisplayName, prog.Level)
		fmt.Fprintf(&sb, "  XP: %d/%d into level (%d to go)\n", prog.InLevel, prog.Span, prog.Remaining)
		fmt.Fprintf(&sb, "  Coins: %d\n", p.Coins)
		if p.UnspentPoints > 0 {
			fmt.Fprintf(&sb, "  Unspent stat points: %d\n", p.UnspentPoints)
		}
	} else {
		sb.WriteString("Profile unavailable offline.\n")
	}
	st := sess.CachedStreak()
	fmt.Fprintf(&sb, "  Streak: %d day(s), best %d\n", st.Current, st.Longest)

	pending := sess.PendingOps()
	fmt.Fprintf(&sb, "  Pending operations: %d\n", len(pending))
	for _, op := range pending {
		fmt.Fprintf(&sb, "    - %s %s\n", op.Type, op.TaskID)
	}
	return &ToolResult{Content: sb.String()}, nil
}

func (s *Server) handleStory(ctx context.Context, _ map[string]any) (*ToolResult, error) {
	sess, res := s.session()
	if res != nil {
		return res, nil
	}
	st, err := sess.Story(ctx)
	if err != nil {
		return errorResult("story unavailable: %v", err), nil
	}
	if len(st.Chapters) == 0 {
		return &ToolResult{Content: "No story chapters yet."}, nil
	}

	var sb strings.Builder
	if cur := st.CurrentChapter(); cur != nil {
		fmt.Fprintf(&sb, "Current chapter: %s\n", cur.Title)
		if cur.Logline != "" {
			fmt.Fprintf(&sb, "  %s\n", cur.Logline)
		}
	}
	next := st.NextChapter()
	if next == nil {
		sb.WriteString("Every chapter is unlocked.")
		return &ToolResult{Content: sb.String()}, nil
	}
	fmt.Fprintf(&sb, "Next chapter: %s\n", next.Title)
	reqs := sess.ChapterRequirements(st, *next)
	if len(reqs) == 0 {
		sb.WriteString("  No requirements.\n")
	}
	for _, r := range reqs {
		mark := " "
		if r.Satisfied {
			mark = "x"
		}
		fmt.Fprintf(&sb, "  [%s] %s (%s)\n", mark, r.Label, r.Info)
	}
	return &ToolResult{Content: sb.String()}, nil
}

// Formatting functions

func formatCompletion(task chronoquest.Task, r *chronoquest.CompletionResult) string {
	var sb strings.Builder
	if r.Outcome == chronoquest.OutcomeQueued {
		fmt.Fprintf(&sb, "Completed %q offline; it will sync when the connection returns.\n", task.Title)
		fmt.Fprintf(&sb, "  Base XP on sync: %d\n", r.Reward.BaseGain)
		return sb.String()
	}
	fmt.Fprintf(&sb, "Completed %q: %d XP, %d coins\n", task.Title, r.Reward.FinalXP, r.Reward.Coins)
	for _, e := range r.Events {
		if e.Kind == chronoquest.EventXPGranted || e.Kind == chronoquest.EventCoinsGranted {
			continue
		}
		fmt.Fprintf(&sb, "  - %s\n", e)
	}
	return sb.String()
}

func formatDrain(r chronoquest.DrainResult) string {
	if r.Skipped {
		return "Sync skipped: offline, or a sync is already running."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Synced %d operation(s)", r.Applied)
	if r.Dropped > 0 {
		fmt.Fprintf(&sb, ", dropped %d", r.Dropped)
	}
	fmt.Fprintf(&sb, "; %d still pending.", r.Remaining)
	if r.Interrupted {
		sb.WriteString(" Connection lost during sync.")
	}
	for _, e := range r.Events {
		if e.Kind == chronoquest.EventOpDropped {
			fmt.Fprintf(&sb, "\n  - %s", e)
		}
	}
	return sb.String()
}
