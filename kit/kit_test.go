package kit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}

	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	resp, err := Chain(mw("a"), mw("b"), mw("c"))(base)(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Fatalf("response: got %v", resp)
	}

	expected := []string{"a_before", "b_before", "c_before", "endpoint", "c_after", "b_after", "a_after"}
	if strings.Join(order, ",") != strings.Join(expected, ",") {
		t.Fatalf("order: got %v, want %v", order, expected)
	}
}

func TestChain_ErrorPropagation(t *testing.T) {
	errFail := errors.New("fail")
	base := func(_ context.Context, _ any) (any, error) { return nil, errFail }

	noop := func(next Endpoint) Endpoint { return next }
	if _, err := Chain(noop)(base)(context.Background(), nil); !errors.Is(err, errFail) {
		t.Fatalf("error: got %v, want %v", err, errFail)
	}
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	base := func(_ context.Context, _ any) (any, error) { panic("boom") }

	_, err := Recovery(logger)(base)(context.Background(), nil)
	var p *ErrPanic
	if !errors.As(err, &p) || p.Value != "boom" {
		t.Fatalf("error: got %v", err)
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	base := func(_ context.Context, _ any) (any, error) { return nil, errors.New("no such level") }

	ctx := WithRequestID(WithTransport(context.Background(), "mcp"), "req_1")
	Logging(logger, "run_level")(base)(ctx, nil)

	out := buf.String()
	for _, want := range []string{`"op":"run_level"`, `"transport":"mcp"`, `"request_id":"req_1"`, "no such level"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %s missing %s", out, want)
		}
	}
}

func TestContext_Transport(t *testing.T) {
	if v := GetTransport(context.Background()); v != "cli" {
		t.Fatalf("default transport: got %q, want 'cli'", v)
	}
	if v := GetTransport(WithTransport(context.Background(), "mcp")); v != "mcp" {
		t.Fatalf("transport: got %q", v)
	}
}

func TestContext_RequestID(t *testing.T) {
	if v := GetRequestID(context.Background()); v != "" {
		t.Fatalf("request_id default: got %q", v)
	}
	if v := GetRequestID(WithRequestID(context.Background(), "req_abc")); v != "req_abc" {
		t.Fatalf("request_id: got %q", v)
	}
}

type echoReq struct {
	Text string `json:"text"`
}

func TestRegisterMCPTool(t *testing.T) {
	impl := &mcp.Implementation{Name: "kit-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)

	echo := func(ctx context.Context, req any) (any, error) {
		r := req.(*echoReq)
		if r.Text == "" {
			return nil, errors.New("text is required")
		}
		return map[string]string{"text": r.Text, "transport": GetTransport(ctx)}, nil
	}
	RegisterMCPTool(srv, &mcp.Tool{
		Name:        "echo",
		InputSchema: map[string]any{"type": "object"},
	}, echo, DecodeArgs[echoReq])

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	session, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"text": "hi"}})
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &got); err != nil {
		t.Fatal(err)
	}
	if got["text"] != "hi" || got["transport"] != "mcp" {
		t.Fatalf("response: %v", got)
	}

	res, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("endpoint error should surface as a tool error")
	}
}
