package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/cefrpipe/classify"
	"github.com/hazyhaar/cefrpipe/corpus"
	"github.com/hazyhaar/cefrpipe/docpipe"
	"github.com/hazyhaar/cefrpipe/export"
	"github.com/hazyhaar/cefrpipe/idgen"
	"github.com/hazyhaar/cefrpipe/kit"
	"github.com/hazyhaar/cefrpipe/runlog"
	"github.com/hazyhaar/cefrpipe/validate"
)

// TextResult is the outcome of classifying inline text.
type TextResult struct {
	Level      string              `json:"level"`
	Counts     map[string]int      `json:"counts"`
	Records    *corpus.LevelCorpus `json:"records"`
	Validation validate.Reports    `json:"validation,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// ClassifyText runs classification (and optionally validation) on inline
// text as if it were a plain-text document named filename. Nothing is
// written to disk.
func (r *Runner) ClassifyText(level, filename, text string, withValidation bool) (*TextResult, error) {
	level = strings.ToUpper(strings.TrimSpace(level))
	if !corpus.ValidLevel(level) {
		return nil, fmt.Errorf("%w: %q", ErrLevel, level)
	}
	if filename == "" {
		filename = "inline.txt"
	}
	cl := classify.New(classify.Config{
		Level:          level,
		MinWordLength:  r.cfg.Processing.MinWordLength,
		AutoCategorize: r.cfg.Processing.AutoCategorize,
		Logger:         r.logger,
	})
	result, err := cl.Classify(docpipe.FromText(filename, text))

	agg := corpus.NewAggregator(level, r.logger)
	agg.Merge(filename, result)
	c := agg.Corpus()

	out := &TextResult{Level: level, Counts: make(map[string]int), Records: c}
	for k, n := range c.Counts() {
		out.Counts[k.StorageName()] = n
	}
	if err != nil {
		out.Error = err.Error()
	}
	if withValidation {
		out.Validation = r.validator(r.logger).Validate(c)
	}
	return out, nil
}

// RegisterMCP registers the pipeline tools on an MCP server.
func (r *Runner) RegisterMCP(srv *mcp.Server) {
	r.registerClassifyTextTool(srv)
	r.registerRunLevelTool(srv)
	r.registerFormatsTool(srv)
	r.registerRunHistoryTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var requestIDs = idgen.Prefixed("req_", idgen.UUIDv7())

// register wraps endpoint with recovery and call logging, and tags each
// call with a request id.
func (r *Runner) register(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	wrapped := kit.Chain(kit.Logging(r.logger, tool.Name), kit.Recovery(r.logger))(endpoint)
	kit.RegisterMCPTool(srv, tool, wrapped, func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		res, err := decode(req)
		if err != nil {
			return nil, err
		}
		id := requestIDs()
		res.EnrichCtx = func(ctx context.Context) context.Context { return kit.WithRequestID(ctx, id) }
		return res, nil
	})
}

// --- classify_text ---

type classifyTextReq struct {
	Level    string `json:"level"`
	Text     string `json:"text"`
	Filename string `json:"filename"`
	Validate bool   `json:"validate"`
}

func (r *Runner) registerClassifyTextTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "cefrpipe_classify_text",
		Description: "Classify inline learning material into vocabulary, grammar, reading, listening, writing and speaking records for a level.",
		InputSchema: inputSchema(map[string]any{
			"level":    map[string]any{"type": "string", "description": "Certification level (A1..C2)"},
			"text":     map[string]any{"type": "string", "description": "Material text, paragraphs separated by blank lines"},
			"filename": map[string]any{"type": "string", "description": "Optional source name; words like 'vocabulary' route the text to one extractor"},
			"validate": map[string]any{"type": "boolean", "description": "Also return validation reports"},
		}, []string{"level", "text"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		q := req.(*classifyTextReq)
		if strings.TrimSpace(q.Text) == "" {
			return nil, errors.New("text is required")
		}
		return r.ClassifyText(q.Level, q.Filename, q.Text, q.Validate)
	}

	r.register(srv, tool, endpoint, kit.DecodeArgs[classifyTextReq])
}

// --- run_level ---

type runLevelReq struct {
	Level    string `json:"level"`
	Validate bool   `json:"validate"`
	Formats  string `json:"formats"`
}

func (r *Runner) registerRunLevelTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "cefrpipe_run_level",
		Description: "Run the full pipeline (conversion, classification, optional validation, export) for one level's materials directory.",
		InputSchema: inputSchema(map[string]any{
			"level":    map[string]any{"type": "string", "description": "Certification level (A1..C2)"},
			"validate": map[string]any{"type": "boolean", "description": "Run validation and write reports"},
			"formats":  map[string]any{"type": "string", "description": "Export formats: json, sql, csv, postgresql, all or a comma list (default: configured formats)"},
		}, []string{"level"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		q := req.(*runLevelReq)
		opts := Options{Validate: q.Validate}
		if q.Formats != "" {
			formats, err := export.ParseFormats(q.Formats)
			if err != nil {
				return nil, err
			}
			opts.Formats = formats
		}
		return r.RunLevel(ctx, q.Level, opts)
	}

	r.register(srv, tool, endpoint, kit.DecodeArgs[runLevelReq])
}

// --- formats ---

func (r *Runner) registerFormatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "cefrpipe_formats",
		Description: "List the supported document formats and export formats.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{
			"document_formats": docpipe.SupportedFormats(),
			"export_formats":   export.Formats,
			"levels":           corpus.Levels,
		}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{}, nil
	}

	r.register(srv, tool, endpoint, decode)
}

// --- run_history ---

type runHistoryReq struct {
	Level  string `json:"level"`
	Status string `json:"status"`
	Limit  int    `json:"limit"`
}

func (r *Runner) registerRunHistoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "cefrpipe_run_history",
		Description: "List recent pipeline runs, newest first.",
		InputSchema: inputSchema(map[string]any{
			"level":  map[string]any{"type": "string", "description": "Only runs of this level"},
			"status": map[string]any{"type": "string", "description": "Only runs with this status (success, error)"},
			"limit":  map[string]any{"type": "integer", "description": "Max runs (default 20)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		q := req.(*runHistoryReq)
		if r.runs == nil {
			return nil, errors.New("run history is not enabled")
		}
		return r.runs.History(ctx, runlog.Filter{Level: q.Level, Status: q.Status, Limit: q.Limit})
	}

	r.register(srv, tool, endpoint, kit.DecodeArgs[runHistoryReq])
}
