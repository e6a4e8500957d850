package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/uas/internal/errors"
	"github.com/hpungsan/uas/internal/export"
	"github.com/hpungsan/uas/internal/journal"
	"github.com/hpungsan/uas/internal/snapshot"
	"github.com/hpungsan/uas/internal/tree"
)

const (
	defaultLimit = 20
	maxLimit     = 500
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store   *snapshot.Store
	journal *journal.Journal
}

// NewHandlers creates a new Handlers instance. j may be nil.
func NewHandlers(store *snapshot.Store, j *journal.Journal) *Handlers {
	return &Handlers{store: store, journal: j}
}

// TreeNodesRequest represents the arguments for tree_nodes.
type TreeNodesRequest struct {
	Snapshot string `json:"snapshot,omitempty"`
	MaxDepth *int   `json:"max_depth,omitempty"`
}

// TreeExportRequest represents the arguments for tree_export.
type TreeExportRequest struct {
	Format   string `json:"format"`
	Snapshot string `json:"snapshot,omitempty"`
}

// LimitRequest represents the arguments for snapshot_list and session_history.
type LimitRequest struct {
	Limit int `json:"limit,omitempty"`
}

// TreeOutput is a full snapshot.
type TreeOutput struct {
	Snapshot snapshot.Info `json:"snapshot"`
	Slots    []*string     `json:"slots"`
	Nodes    []tree.Node   `json:"nodes"`
	Depth    int           `json:"depth"`
}

// NodesOutput lists the nodes of a snapshot.
type NodesOutput struct {
	Snapshot snapshot.Info `json:"snapshot"`
	Nodes    []tree.Node   `json:"nodes"`
	Count    int           `json:"count"`
}

// ExportOutput carries rendered text.
type ExportOutput struct {
	Snapshot snapshot.Info `json:"snapshot"`
	Format   export.Format `json:"format"`
	Content  string        `json:"content"`
}

// SnapshotListOutput lists snapshots newest first.
type SnapshotListOutput struct {
	Items []snapshot.Info `json:"items"`
	Total int             `json:"total"`
}

// HistoryOutput lists journal entries newest first.
type HistoryOutput struct {
	Items []journal.Entry `json:"items"`
}

// HandleTreeLatest handles the tree_latest tool call.
func (h *Handlers) HandleTreeLatest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, info, err := h.store.LoadLatest()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(TreeOutput{Snapshot: info, Slots: t.Slots(), Nodes: t.Nodes(), Depth: t.Depth()})
}

// HandleTreeNodes handles the tree_nodes tool call.
func (h *Handlers) HandleTreeNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TreeNodesRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.MaxDepth != nil && *input.MaxDepth < 0 {
		return errorResult(errors.NewInvalidRequest("max_depth must be >= 0")), nil
	}

	t, info, err := h.load(input.Snapshot)
	if err != nil {
		return errorResult(err), nil
	}

	nodes := t.Nodes()
	if input.MaxDepth != nil {
		kept := nodes[:0]
		for _, n := range nodes {
			if n.Depth <= *input.MaxDepth {
				kept = append(kept, n)
			}
		}
		nodes = kept
	}
	return successResult(NodesOutput{Snapshot: info, Nodes: nodes, Count: len(nodes)})
}

// HandleTreeExport handles the tree_export tool call.
func (h *Handlers) HandleTreeExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TreeExportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	format, err := export.ParseFormat(input.Format)
	if err != nil {
		return errorResult(err), nil
	}

	t, info, err := h.load(input.Snapshot)
	if err != nil {
		return errorResult(err), nil
	}
	data, err := export.Render(t, format)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(ExportOutput{Snapshot: info, Format: format, Content: string(data)})
}

// HandleSnapshotList handles the snapshot_list tool call.
func (h *Handlers) HandleSnapshotList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LimitRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	limit, err := clampLimit(input.Limit)
	if err != nil {
		return errorResult(err), nil
	}

	infos, err := h.store.List()
	if err != nil {
		return errorResult(err), nil
	}
	items := make([]snapshot.Info, 0, min(limit, len(infos)))
	for i := len(infos) - 1; i >= 0 && len(items) < limit; i-- {
		items = append(items, infos[i])
	}
	return successResult(SnapshotListOutput{Items: items, Total: len(infos)})
}

// HandleSessionHistory handles the session_history tool call.
func (h *Handlers) HandleSessionHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.journal == nil {
		return errorResult(errors.NewInvalidRequest("session journal is disabled")), nil
	}
	input, err := decode[LimitRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	limit, err := clampLimit(input.Limit)
	if err != nil {
		return errorResult(err), nil
	}

	entries, err := h.journal.Recent(ctx, limit)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(HistoryOutput{Items: entries})
}

// load returns the named snapshot, or the latest when id is empty.
func (h *Handlers) load(id string) (*tree.Tree, snapshot.Info, error) {
	if id == "" {
		return h.store.LoadLatest()
	}
	return h.store.Load(snapshot.ID(id))
}

func clampLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, errors.NewInvalidRequest("limit must be >= 0")
	case limit == 0:
		return defaultLimit, nil
	case limit > maxLimit:
		return maxLimit, nil
	}
	return limit, nil
}

// decode unmarshals MCP request arguments into a typed struct.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, errors.NewInvalidRequest(fmt.Sprintf("marshal args: %v", err))
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, errors.NewInvalidRequest(fmt.Sprintf("unmarshal args: %v", err))
	}
	return result, nil
}

// errorResult creates an MCP error result from any error.
// Details of INTERNAL errors are withheld: they carry paths and SQL.
func errorResult(err error) *mcp.CallToolResult {
	errorObj := map[string]any{
		"code":    errors.ErrInternal,
		"message": "an internal error occurred",
	}
	if uasErr, ok := err.(*errors.UasError); ok && uasErr.Code != errors.ErrInternal {
		errorObj["code"] = uasErr.Code
		errorObj["message"] = uasErr.Message
		if uasErr.Details != nil {
			errorObj["details"] = uasErr.Details
		}
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
