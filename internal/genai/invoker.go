package genai

import (
	"context"
	"errors"
	"log"
)

// ModelClient is the slice of Client the invoker needs; tests substitute a
// mock.
type ModelClient interface {
	GenerateContent(ctx context.Context, model string, req *GenerateContentRequest, apiKeyOverride string) (string, error)
}

// GenerateResult is the outcome of an invocation.
type GenerateResult struct {
	Text            string
	ModelUsed       string
	FallbackApplied bool
}

// invokeState is the explicit two-state machine behind the fallback: a
// single Primary → Fallback transition, never a chain.
type invokeState int

const (
	statePrimary invokeState = iota
	stateFallback
)

// Invoker calls the generative API with a bounded model fallback: a failure
// classified as model-unavailable triggers exactly one retry against the
// default model, and only when the requested model differs from it.
type Invoker struct {
	client       ModelClient
	defaultModel string
}

// NewInvoker creates an Invoker with the given fallback model.
func NewInvoker(client ModelClient, defaultModel string) *Invoker {
	return &Invoker{client: client, defaultModel: defaultModel}
}

// Generate invokes the requested model, applying the one-shot fallback rule.
// apiKeyOverride, when non-empty, is forwarded to every attempt (the
// fallback hop included) so a per-user key override covers the whole
// invocation.
func (inv *Invoker) Generate(ctx context.Context, model string, req *GenerateContentRequest, apiKeyOverride string) (GenerateResult, error) {
	if model == "" {
		model = inv.defaultModel
	}

	state := statePrimary
	current := model
	for {
		text, err := inv.client.GenerateContent(ctx, current, req, apiKeyOverride)
		if err == nil {
			return GenerateResult{
				Text:            text,
				ModelUsed:       current,
				FallbackApplied: state == stateFallback,
			}, nil
		}

		// Transition rule: Primary → Fallback, once, and only for a
		// model-unavailable failure on a non-default model.
		var apiErr *APIError
		if state == statePrimary && errors.As(err, &apiErr) && apiErr.ModelUnavailable() && current != inv.defaultModel {
			log.Printf("[Invoker] Model %q unavailable (status %d), falling back to %q", current, apiErr.StatusCode, inv.defaultModel)
			state = stateFallback
			current = inv.defaultModel
			continue
		}

		return GenerateResult{}, err
	}
}
