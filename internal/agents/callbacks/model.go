package callbacks

import (
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"

	"tripmind/internal/agents/state"
	"tripmind/internal/metrics"
	"tripmind/pkg/logger"
)

// TokenCountingCallback tracks token usage reported by the model
func TokenCountingCallback() llmagent.AfterModelCallback {
	return func(ctx agent.CallbackContext, resp *model.LLMResponse, respErr error) (*model.LLMResponse, error) {
		if respErr != nil || resp == nil || resp.UsageMetadata == nil || resp.Partial {
			return resp, respErr
		}

		prompt := resp.UsageMetadata.PromptTokenCount
		completion := resp.UsageMetadata.CandidatesTokenCount

		logger.Get().With("component", "token_counter").Debugf(
			"Tokens used: prompt=%d completion=%d total=%d",
			prompt, completion, resp.UsageMetadata.TotalTokenCount,
		)

		state.AddTokens(ctx.State(), int(prompt), int(completion))
		metrics.RecordTokens(prompt, completion)

		return resp, nil
	}
}
