package callbacks

import (
	"time"

	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/tool"

	"tripmind/internal/agents/state"
	"tripmind/internal/metrics"
	"tripmind/pkg/logger"
)

// RecordToolStartTimeBeforeToolCallback records execution start time for latency metrics
func RecordToolStartTimeBeforeToolCallback() llmagent.BeforeToolCallback {
	return func(ctx tool.Context, t tool.Tool, args map[string]any) (map[string]any, error) {
		_ = state.SetToolStartTime(ctx.State(), time.Now())
		return nil, nil
	}
}

// AuditLogAfterToolCallback logs every tool execution with its conversation
func AuditLogAfterToolCallback() llmagent.AfterToolCallback {
	return func(ctx tool.Context, t tool.Tool, args, result map[string]any, err error) (map[string]any, error) {
		toolName := t.Name()
		log := logger.Get().With(
			"component", "tool_audit",
			"tool", toolName,
			"handler", state.GetHandler(ctx.ReadonlyState()),
			"session_id", state.GetConversationID(ctx.ReadonlyState()),
		)

		if err != nil {
			log.Warnf("Tool %s failed: %v", toolName, err)
		} else {
			log.Debugf("Tool %s executed successfully", toolName)
		}

		n := state.IncrementToolCallCount(ctx.State())
		log.Debugf("Tool calls in this invocation: %d", n)

		return result, err
	}
}

// MetricsAfterToolCallback records tool execution count and latency
func MetricsAfterToolCallback() llmagent.AfterToolCallback {
	return func(ctx tool.Context, t tool.Tool, args, result map[string]any, err error) (map[string]any, error) {
		var latency time.Duration
		if started, ok := state.GetToolStartTime(ctx.ReadonlyState()); ok {
			latency = time.Since(started)
		}
		metrics.RecordToolExecution(t.Name(), latency, err)
		return result, err
	}
}

// ErrorAsResultCallback turns a tool failure into a result the model can read,
// so a failed search does not end the model stream.
func ErrorAsResultCallback() llmagent.AfterToolCallback {
	return func(ctx tool.Context, t tool.Tool, args, result map[string]any, err error) (map[string]any, error) {
		if err == nil {
			return result, nil
		}
		return map[string]any{
			"status": "error",
			"error":  err.Error(),
		}, nil
	}
}
