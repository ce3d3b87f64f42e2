package research

import "context"

// answer synthesizes the final reply from the accumulated context. isFinal
// marks the budget-exhausted variant, which instructs the model to answer
// with whatever evidence exists and state its limitations.
func (c *Controller) answer(ctx context.Context, rc *Context, isFinal bool) (string, error) {
	return c.generate(ctx, rc, PhaseAnswering, buildAnswerPrompt(rc, isFinal))
}
