// Package middleware provides a small set of ready-made
// router.Middleware values — request logging and panic recovery —
// grounded on the teacher's bolt/middleware/logger.go and
// bolt/middleware/recovery.go. Route handlers and application-specific
// middleware are out of this spec's scope (spec.md §1); these two are
// ambient enough (structured logging, never crashing a worker) to carry
// forward as part of the server's own stack rather than leaving every
// application to reinvent them.
package middleware

import (
	"time"

	"github.com/tidwall/gjson"

	"github.com/wattlab/surge/internal/logx"
	"github.com/wattlab/surge/pkg/surge"
	"github.com/wattlab/surge/pkg/surge/router"
)

// Logger returns a middleware that logs one structured line per request
// through logger: method, path, status, and duration — the same fields
// the teacher's Logger() middleware records, minus response size (the
// router doesn't buffer stream bodies, so a byte count isn't always
// known at this layer).
func Logger(logger *logx.Logger) router.Middleware {
	if logger == nil {
		logger = logx.Default
	}
	return func(next router.Handler) router.Handler {
		return func(req *surge.Request, params map[string]string, jsonBody gjson.Result) *surge.Response {
			start := time.Now()
			resp := next(req, params, jsonBody)
			logger.Info("request",
				logx.Field{Key: "method", Value: req.Method.String()},
				logx.Field{Key: "path", Value: req.Path},
				logx.Field{Key: "status", Value: int(resp.Status)},
				logx.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
			)
			return resp
		}
	}
}

// Recovery returns a middleware that converts a panicking handler into
// a 500 response instead of letting it propagate, matching the
// teacher's bolt/middleware/recovery.go behavior and spec.md §4.2's
// worker-level isolation (this adds the same isolation one layer up, at
// the handler chain, so a single route's bug can't take the exchange
// down before the pool-level recover runs).
func Recovery(logger *logx.Logger) router.Middleware {
	if logger == nil {
		logger = logx.Default
	}
	return func(next router.Handler) router.Handler {
		return func(req *surge.Request, params map[string]string, jsonBody gjson.Result) (resp *surge.Response) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panicked",
						logx.Field{Key: "path", Value: req.Path},
						logx.Field{Key: "panic", Value: r},
					)
					resp = surge.NewResponse(surge.StatusInternalServerError, "application/json", []byte(`{"error":"internal server error"}`))
				}
			}()
			return next(req, params, jsonBody)
		}
	}
}
