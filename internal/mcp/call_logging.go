package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"slices"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// callInfo is filled in by tool handlers while a call is in flight.
type callInfo struct {
	code string
}

type callInfoKey struct{}

// recordErrorCode notes the API error code of the current tool call.
func recordErrorCode(ctx context.Context, code string) {
	if info, ok := ctx.Value(callInfoKey{}).(*callInfo); ok {
		info.code = code
	}
}

// callLoggingMiddleware logs every tool call with a summary of its
// arguments, how long it took and the error code it ended with. Other
// requests are logged at debug level.
func callLoggingMiddleware(logger *slog.Logger) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			params, ok := callParams(req)
			if method != "tools/call" || !ok {
				logger.Debug("mcp request", "method", method)
				return next(ctx, method, req)
			}

			info := &callInfo{}
			ctx = context.WithValue(ctx, callInfoKey{}, info)
			attrs := append([]any{"tool", params.Name}, summarizeArgs(params.Arguments)...)

			start := time.Now()
			result, err := next(ctx, method, req)
			attrs = append(attrs, "elapsed", time.Since(start).Round(time.Millisecond))

			switch {
			case err != nil:
				logger.Warn("tool call rejected", append(attrs, "error", err)...)
			case info.code != "":
				logger.Info("tool call failed", append(attrs, "code", info.code)...)
			default:
				logger.Info("tool call", attrs...)
			}
			return result, err
		}
	}
}

func callParams(req sdkmcp.Request) (params *sdkmcp.CallToolParamsRaw, ok bool) {
	if req == nil {
		return nil, false
	}
	params, ok = req.GetParams().(*sdkmcp.CallToolParamsRaw)
	return params, ok && params != nil
}

// summarizeArgs reports list arguments by length and photo ids by value,
// so batches of paths never reach the log.
func summarizeArgs(raw json.RawMessage) []any {
	var args map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &args) != nil {
		return nil
	}
	var attrs []any
	for _, key := range slices.Sorted(maps.Keys(args)) {
		var list []json.RawMessage
		if json.Unmarshal(args[key], &list) == nil && list != nil {
			attrs = append(attrs, key+"_count", len(list))
			continue
		}
		if key == "id" || key == "photo_id" {
			attrs = append(attrs, key, string(args[key]))
		}
	}
	return attrs
}
