// Package mcp exposes the tree read-only over the Model Context Protocol.
// No tool can graft, save or delete: the tree only grows through play.
package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/uas/internal/export"
	"github.com/hpungsan/uas/internal/journal"
	"github.com/hpungsan/uas/internal/snapshot"
)

var snapshotParam = mcp.WithString("snapshot",
	mcp.Description("Snapshot id (e.g. 20261018143000). Defaults to the latest snapshot."),
)

var (
	treeLatestToolDef = mcp.NewTool("tree_latest",
		mcp.WithDescription("Return the latest snapshot of the uniqueness tree: its id, slot sequence and occupied nodes."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	treeNodesToolDef = mcp.NewTool("tree_nodes",
		mcp.WithDescription("List the occupied nodes of a snapshot with their position, parent, side and depth."),
		snapshotParam,
		mcp.WithNumber("max_depth", mcp.Description("Only return nodes at or above this depth (root is 0).")),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	treeExportToolDef = mcp.NewTool("tree_export",
		mcp.WithDescription("Render a snapshot as Graphviz DOT, Markdown, HTML, JSON or a text outline."),
		mcp.WithString("format",
			mcp.Required(),
			mcp.Description("Export format."),
			mcp.Enum(formatNames()...),
		),
		snapshotParam,
		mcp.WithReadOnlyHintAnnotation(true),
	)

	snapshotListToolDef = mcp.NewTool("snapshot_list",
		mcp.WithDescription("List saved snapshots, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum snapshots to return (default 20, max 500).")),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	sessionHistoryToolDef = mcp.NewTool("session_history",
		mcp.WithDescription("List recently finished sessions from the journal, newest first. Answers are not recorded."),
		mcp.WithNumber("limit", mcp.Description("Maximum sessions to return (default 20, max 500).")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
	// needsJournal tools are skipped when the journal is disabled.
	needsJournal bool
}

var toolRegistry = map[string]toolEntry{
	"tree_latest": {
		def:     treeLatestToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTreeLatest },
	},
	"tree_nodes": {
		def:     treeNodesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTreeNodes },
	},
	"tree_export": {
		def:     treeExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTreeExport },
	},
	"snapshot_list": {
		def:     snapshotListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnapshotList },
	},
	"session_history": {
		def:          sessionHistoryToolDef,
		handler:      func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionHistory },
		needsJournal: true,
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewServer creates an MCP server over store. j may be nil, in which
// case session_history is not registered.
func NewServer(store *snapshot.Store, j *journal.Journal, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"uas",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(store, j)
	for _, entry := range toolRegistry {
		if entry.needsJournal && j == nil {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run serves the tools over stdio until stdin closes.
func Run(store *snapshot.Store, j *journal.Journal, version string) error {
	return server.ServeStdio(NewServer(store, j, version))
}

func formatNames() []string {
	names := make([]string, len(export.Formats))
	for i, f := range export.Formats {
		names[i] = string(f)
	}
	return names
}
