package genai

import (
	"fmt"
	"regexp"
)

// --- Wire types for the generative API ---

// GenerateContentRequest is the JSON body sent to the generate endpoint.
type GenerateContentRequest struct {
	Contents          []Content        `json:"contents"`
	GenerationConfig  GenerationConfig `json:"generationConfig"`
	SystemInstruction *Content         `json:"systemInstruction,omitempty"`
}

// Content is one turn: a role plus an ordered list of parts.
type Content struct {
	Role  string `json:"role,omitempty"` // "user" or "model"
	Parts []Part `json:"parts"`
}

// Part is a single content fragment. Exactly one field is set.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inline_data,omitempty"`
}

// Blob is inline binary data carried as base64 text.
type Blob struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// GenerationConfig carries the numeric generation parameters.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// GenerateContentResponse is the success envelope returned by the API.
type GenerateContentResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate is one generated reply.
type Candidate struct {
	Content Content `json:"content"`
}

// Text concatenates the text parts of the first candidate.
func (r *GenerateContentResponse) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var out string
	for _, p := range r.Candidates[0].Content.Parts {
		out += p.Text
	}
	return out
}

// --- Failures ---

// APIError is a non-2xx response from the generative API, surfaced verbatim
// with its status code and message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("generative API error (status %d): %s", e.StatusCode, e.Message)
}

// modelUnavailablePattern matches error messages that indicate the requested
// model identifier was rejected, for responses that don't carry a clean
// status code.
var modelUnavailablePattern = regexp.MustCompile(`(?i)(model\s+not\s+found|no\s+such\s+model|model .* (is not|not) (found|supported|available)|is not a valid model)`)

// ModelUnavailable reports whether this failure looks like "the requested
// model does not exist / is invalid": HTTP 404, HTTP 400, or a matching
// message. This is the trigger for the one-shot fallback.
func (e *APIError) ModelUnavailable() bool {
	if e.StatusCode == 404 || e.StatusCode == 400 {
		return true
	}
	return modelUnavailablePattern.MatchString(e.Message)
}
