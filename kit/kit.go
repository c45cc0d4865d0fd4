// Package kit holds the transport-neutral endpoint type used to expose
// pipeline operations, plus the middleware and context helpers shared by
// its transports.
package kit

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// Endpoint is one operation: a decoded request in, a JSON-encodable
// response out.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint without changing its signature.
type Middleware func(next Endpoint) Endpoint

// Chain composes middlewares left-to-right: the first one is the outermost
// wrapper.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging logs every call with its duration under the given operation name.
func Logging(logger *slog.Logger, op string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"op", op,
				"transport", GetTransport(ctx),
				"request_id", GetRequestID(ctx),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if err != nil {
				logger.ErrorContext(ctx, "kit: call failed", append(attrs, "error", err)...)
			} else {
				logger.DebugContext(ctx, "kit: call ok", attrs...)
			}
			return resp, err
		}
	}
}

// Recovery turns a panic in a downstream endpoint into an *ErrPanic.
func Recovery(logger *slog.Logger) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (resp any, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "kit: endpoint panic recovered",
						"panic", r,
						"stack", string(debug.Stack()))
					err = &ErrPanic{Value: r}
				}
			}()
			return next(ctx, req)
		}
	}
}

// ErrPanic wraps a recovered panic value as an error.
type ErrPanic struct {
	Value any
}

func (e *ErrPanic) Error() string {
	return fmt.Sprintf("kit: endpoint panicked: %v", e.Value)
}
