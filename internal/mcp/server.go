// Package mcp exposes clip search and the run ledger over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/helixml/vidembed/domain/embedding"
	"github.com/helixml/vidembed/domain/run"
	"github.com/helixml/vidembed/domain/store"
)

// Searcher answers text queries against stored clips.
type Searcher interface {
	Query(ctx context.Context, query string, topK int) ([]store.Result, error)
}

// RunLister reads the run ledger.
type RunLister interface {
	Runs(ctx context.Context, limit int) ([]run.Run, error)
	Clips(ctx context.Context, runID string) ([]run.Clip, error)
}

// Server wraps the MCP server with vidembed tools.
type Server struct {
	mcpServer *server.MCPServer
	search    Searcher
	runs      RunLister
	logger    *slog.Logger
}

// NewServer creates an MCP server. runs may be nil when no ledger is configured.
func NewServer(search Searcher, runs RunLister, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		search: search,
		runs:   runs,
		logger: logger,
	}

	mcpServer := server.NewMCPServer(
		"vidembed",
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)
	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("search_clips",
		mcp.WithDescription("Find the video clips whose content best matches a text description"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What happens in the clip, in plain words"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Number of results to return (default: 10)"),
		),
	), s.handleSearch)

	mcpServer.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recent embedding runs, newest first"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs (default: 20)"),
		),
	), s.handleListRuns)

	mcpServer.AddTool(mcp.NewTool("get_run_clips",
		mcp.WithDescription("List every clip processed by one run with its outcome"),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("The run id returned by list_runs"),
		),
	), s.handleRunClips)
}

type clipResult struct {
	ID         int64          `json:"id"`
	Score      float64        `json:"score"`
	URI        string         `json:"uri,omitempty"`
	Video      string         `json:"video,omitempty"`
	StartFrame int            `json:"start_frame"`
	EndFrame   int            `json:"end_frame"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}
	topK := request.GetInt("top_k", 10)

	results, err := s.search.Query(ctx, query, topK)
	if err != nil {
		s.logger.Error("search failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	out := make([]clipResult, len(results))
	for i, r := range results {
		md := r.Metadata()
		start := intValue(md[embedding.KeyStartFrame])
		end := intValue(md[embedding.KeyEndFrame])
		out[i] = clipResult{
			ID:         r.ID(),
			Score:      r.Score(),
			Video:      r.Video(),
			StartFrame: start,
			EndFrame:   end,
			Metadata:   md,
		}
		if r.Video() != "" {
			out[i].URI = NewClipURI(r.Video(), start, end).String()
		}
	}
	return jsonResult(out)
}

type runResult struct {
	ID         string `json:"id"`
	Encoder    string `json:"encoder"`
	Store      string `json:"store"`
	Mode       string `json:"mode"`
	Corpus     string `json:"corpus"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	Stored     int    `json:"stored"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.runs == nil {
		return mcp.NewToolResultError("run ledger not configured"), nil
	}
	runs, err := s.runs.Runs(ctx, request.GetInt("limit", 20))
	if err != nil {
		s.logger.Error("failed to list runs", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}

	out := make([]runResult, len(runs))
	for i, r := range runs {
		out[i] = runResult{
			ID:        r.ID,
			Encoder:   r.Encoder,
			Store:     r.Store,
			Mode:      string(r.Mode),
			Corpus:    r.Corpus,
			StartedAt: r.StartedAt.UTC().Format(time.RFC3339),
			Stored:    r.Clips,
			Skipped:   r.Skipped,
			Failed:    r.Failed,
		}
		if !r.FinishedAt.IsZero() {
			out[i].FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339)
		}
	}
	return jsonResult(out)
}

type runClipResult struct {
	ID         int64  `json:"id"`
	URI        string `json:"uri"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	Frames     int    `json:"frames"`
	EncodeMs   int64  `json:"encode_ms"`
	UploadMs   int64  `json:"upload_ms"`
	StartFrame int    `json:"start_frame"`
	EndFrame   int    `json:"end_frame"`
}

func (s *Server) handleRunClips(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id is required"), nil
	}
	if s.runs == nil {
		return mcp.NewToolResultError("run ledger not configured"), nil
	}
	clips, err := s.runs.Clips(ctx, runID)
	if err != nil {
		s.logger.Error("failed to list clips", slog.String("run_id", runID), slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("failed to list clips: %v", err)), nil
	}

	out := make([]runClipResult, len(clips))
	for i, c := range clips {
		out[i] = runClipResult{
			ID:         c.ClipID,
			URI:        NewClipURI(c.Video, c.StartFrame, c.EndFrame).String(),
			Status:     string(c.Status),
			Error:      c.Error,
			Frames:     c.Frames,
			EncodeMs:   c.EncodeTime.Milliseconds(),
			UploadMs:   c.UploadTime.Milliseconds(),
			StartFrame: c.StartFrame,
			EndFrame:   c.EndFrame,
		}
	}
	return jsonResult(out)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// intValue reads a frame number from metadata decoded by any store.
func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
