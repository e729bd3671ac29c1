package genai

import (
	"errors"
	"fmt"

	"gemchat-backend/internal/imaging"
	"gemchat-backend/internal/models"
)

// Defaults substituted for any generation parameter not supplied.
const (
	DefaultTemperature     = 0.7
	DefaultTopP            = 0.95
	DefaultMaxOutputTokens = 8192

	// defaultGreeting guarantees a request is never sent with zero content.
	defaultGreeting = "Hello"
)

// ErrPayloadTooLarge means the total inline byte estimate across one
// message's images exceeds the inline cap. The send is rejected before any
// network call.
var ErrPayloadTooLarge = errors.New("inline image payload exceeds the inline size cap")

// PayloadInput is everything that feeds one request body.
type PayloadInput struct {
	Text    string
	Images  []models.MessageImage // already transcoded/promoted
	Parts   []models.RequestPart  // structured mixed fragments, order preserved
	History []models.Message      // prior turns, oldest first
	Params  models.GenerationParams
}

// BuildPayload assembles the provider request body from free text, inline
// images, uploaded-image URLs, prior turns and generation parameters.
//
// Inline images are de-duplicated by exact (mimeType, data) signature, first
// occurrence wins. When explicit structured parts are supplied their order is
// preserved verbatim; otherwise a single turn is synthesized with the text
// part first, then the images in input order. An empty result is substituted
// with a single default greeting part.
func BuildPayload(in PayloadInput) (*GenerateContentRequest, error) {
	images := dedupeImages(in.Images)

	if err := checkInlineBudget(images, in.Parts); err != nil {
		return nil, err
	}

	var contents []Content
	for _, msg := range in.History {
		if c, ok := historyContent(msg); ok {
			contents = append(contents, c)
		}
	}

	turn := Content{Role: "user"}
	if len(in.Parts) > 0 {
		seen := make(map[string]bool)
		for _, p := range in.Parts {
			switch {
			case p.Image != nil:
				part, ok := imagePart(*p.Image, seen)
				if ok {
					turn.Parts = append(turn.Parts, part)
				}
			case p.Text != "":
				turn.Parts = append(turn.Parts, Part{Text: p.Text})
			}
		}
	} else {
		if in.Text != "" {
			turn.Parts = append(turn.Parts, Part{Text: in.Text})
		}
		seen := make(map[string]bool)
		for _, img := range images {
			if part, ok := imagePart(img, seen); ok {
				turn.Parts = append(turn.Parts, part)
			}
		}
	}

	if len(turn.Parts) == 0 && len(contents) == 0 {
		turn.Parts = append(turn.Parts, Part{Text: defaultGreeting})
	}
	if len(turn.Parts) > 0 {
		contents = append(contents, turn)
	}

	req := &GenerateContentRequest{
		Contents:         contents,
		GenerationConfig: buildConfig(in.Params),
	}
	if in.Params.CustomInstructions != "" {
		req.SystemInstruction = &Content{
			Parts: []Part{{Text: in.Params.CustomInstructions}},
		}
	}
	return req, nil
}

// buildConfig substitutes numeric defaults for absent parameters and clamps
// supplied values into their valid ranges.
func buildConfig(p models.GenerationParams) GenerationConfig {
	cfg := GenerationConfig{
		Temperature:     DefaultTemperature,
		TopP:            DefaultTopP,
		MaxOutputTokens: DefaultMaxOutputTokens,
	}
	if p.Temperature != nil {
		cfg.Temperature = clamp01(*p.Temperature)
	}
	if p.TopP != nil {
		cfg.TopP = clamp01(*p.TopP)
	}
	if p.MaxOutputTokens != nil && *p.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = *p.MaxOutputTokens
	}
	return cfg
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// dedupeImages drops inline duplicates by exact (mimeType, data) signature,
// first occurrence wins. URL-only images are never considered duplicates of
// each other.
func dedupeImages(images []models.MessageImage) []models.MessageImage {
	if len(images) < 2 {
		return images
	}
	seen := make(map[string]bool, len(images))
	out := make([]models.MessageImage, 0, len(images))
	for _, img := range images {
		if img.InlineData != "" {
			sig := img.MimeType + "\x00" + img.InlineData
			if seen[sig] {
				continue
			}
			seen[sig] = true
		}
		out = append(out, img)
	}
	return out
}

// imagePart converts one image record into a request part. Inline data wins
// over the URL when both are present; URL-only images ride along as text
// parts carrying the durable URL. seen carries the dedupe signatures across
// a single turn.
func imagePart(img models.MessageImage, seen map[string]bool) (Part, bool) {
	if img.InlineData != "" {
		sig := img.MimeType + "\x00" + img.InlineData
		if seen[sig] {
			return Part{}, false
		}
		seen[sig] = true
		return Part{InlineData: &Blob{MIMEType: img.MimeType, Data: img.InlineData}}, true
	}
	if img.URL != "" {
		return Part{Text: fmt.Sprintf("[image: %s]", img.URL)}, true
	}
	return Part{}, false
}

// historyContent converts a persisted message into a prior turn. Persisted
// messages never carry inline data, so their images contribute URL text
// parts only.
func historyContent(msg models.Message) (Content, bool) {
	role := "user"
	if msg.Role == "assistant" {
		role = "model"
	}
	c := Content{Role: role}
	if msg.Text != "" {
		c.Parts = append(c.Parts, Part{Text: msg.Text})
	}
	seen := make(map[string]bool)
	for _, img := range msg.Images {
		if part, ok := imagePart(img, seen); ok {
			c.Parts = append(c.Parts, part)
		}
	}
	return c, len(c.Parts) > 0
}

// checkInlineBudget enforces the per-message inline cap before any network
// call is made.
func checkInlineBudget(images []models.MessageImage, parts []models.RequestPart) error {
	total := 0
	for _, img := range images {
		total += imaging.EstimateDecodedSize(img.InlineData)
	}
	for _, p := range parts {
		if p.Image != nil {
			total += imaging.EstimateDecodedSize(p.Image.InlineData)
		}
	}
	if total > imaging.InlineByteCap {
		return fmt.Errorf("%w: estimated %d bytes inline, cap is %d", ErrPayloadTooLarge, total, imaging.InlineByteCap)
	}
	return nil
}
