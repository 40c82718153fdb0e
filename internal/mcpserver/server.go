// Package mcpserver exposes docindex retrieval to AI clients over the Model
// Context Protocol.
package mcpserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docindex/internal/catalog"
	"github.com/Aman-CERP/docindex/internal/engine"
	"github.com/Aman-CERP/docindex/internal/search"
	"github.com/Aman-CERP/docindex/pkg/version"
)

const (
	maxResults = 50
)

// Server bridges MCP clients and an Engine. The engine is owned by the caller.
type Server struct {
	mcp    *mcp.Server
	engine *engine.Engine
	logger *slog.Logger
}

// SearchInput is the input schema of the search tool.
type SearchInput struct {
	Index string `json:"index" jsonschema:"name of the index to query"`
	Query string `json:"query" jsonschema:"natural language query"`
	K     int    `json:"k,omitempty" jsonschema:"number of passages to return, default from config"`
}

// SearchOutput is the structured result of the search tool.
type SearchOutput struct {
	Index     string          `json:"index"`
	Query     string          `json:"query"`
	BestScore float64         `json:"best_score"`
	Results   []search.Result `json:"results"`
}

// ListIndexesInput takes no parameters.
type ListIndexesInput struct{}

// ListIndexesOutput is the structured result of the list_indexes tool.
type ListIndexesOutput struct {
	Indexes []catalog.Descriptor `json:"indexes"`
}

// IndexStatusInput selects the index to inspect.
type IndexStatusInput struct {
	Index string `json:"index" jsonschema:"name of the index to inspect"`
}

// New creates the MCP server and registers its tools.
func New(eng *engine.Engine) (*Server, error) {
	if eng == nil {
		return nil, stderrors.New("engine is required")
	}
	s := &Server{
		engine: eng,
		logger: eng.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    version.Name,
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "search",
		Description: "Hybrid semantic and keyword search over a named document index. " +
			"Returns ranked passages with their source file and page.",
	}, s.mcpSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_indexes",
		Description: "List the available document indexes with their model, size and document counts.",
	}, s.mcpListIndexesHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Check whether an index exists and is consistent before searching it.",
	}, s.mcpIndexStatusHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", 3))
}

// CallTool invokes a tool by name with loosely typed arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search":
		in := SearchInput{}
		in.Index, _ = args["index"].(string)
		in.Query, _ = args["query"].(string)
		switch k := args["k"].(type) {
		case float64:
			in.K = int(k)
		case int:
			in.K = k
		}
		return s.search(ctx, in)
	case "list_indexes":
		return s.listIndexes()
	case "index_status":
		index, _ := args["index"].(string)
		return s.indexStatus(index)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func (s *Server) search(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	if strings.TrimSpace(in.Index) == "" {
		return nil, NewInvalidParamsError("index parameter is required")
	}
	if strings.TrimSpace(in.Query) == "" {
		return nil, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	k := in.K
	if k > maxResults {
		k = maxResults
	}

	start := time.Now()
	requestID := generateRequestID()
	results, err := s.engine.Search(ctx, in.Index, in.Query, k)
	if err != nil {
		s.logger.Error("search_failed",
			slog.String("request_id", requestID),
			slog.String("index", in.Index),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("search_completed",
		slog.String("request_id", requestID),
		slog.String("index", in.Index),
		slog.Int("result_count", len(results)),
		slog.Duration("duration", time.Since(start)))

	if results == nil {
		results = []search.Result{}
	}
	return &SearchOutput{
		Index:     in.Index,
		Query:     in.Query,
		BestScore: search.BestScore(results),
		Results:   results,
	}, nil
}

func (s *Server) listIndexes() (*ListIndexesOutput, error) {
	list, err := s.engine.Catalog.List()
	if err != nil {
		return nil, MapError(err)
	}
	if list == nil {
		list = []catalog.Descriptor{}
	}
	return &ListIndexesOutput{Indexes: list}, nil
}

func (s *Server) indexStatus(name string) (*catalog.Status, error) {
	if strings.TrimSpace(name) == "" {
		return nil, NewInvalidParamsError("index parameter is required")
	}
	st := s.engine.Catalog.Status(name)
	return &st, nil
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (
	*mcp.CallToolResult,
	*SearchOutput,
	error,
) {
	out, err := s.search(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	text := search.FormatContext(out.Results)
	if text == "" {
		text = fmt.Sprintf("No passages found in %q for %q.", in.Index, in.Query)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, out, nil
}

func (s *Server) mcpListIndexesHandler(_ context.Context, _ *mcp.CallToolRequest, _ ListIndexesInput) (
	*mcp.CallToolResult,
	*ListIndexesOutput,
	error,
) {
	out, err := s.listIndexes()
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

func (s *Server) mcpIndexStatusHandler(_ context.Context, _ *mcp.CallToolRequest, in IndexStatusInput) (
	*mcp.CallToolResult,
	*catalog.Status,
	error,
) {
	out, err := s.indexStatus(in.Index)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

// Serve runs the server on transport until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "", "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !stderrors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
