package genai

import (
	"encoding/base64"
	"strings"
	"testing"

	"gemchat-backend/internal/imaging"
	"gemchat-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inlineImg(mime, data string) models.MessageImage {
	return models.MessageImage{MimeType: mime, InlineData: base64.StdEncoding.EncodeToString([]byte(data))}
}

func TestBuildPayloadTextOnly(t *testing.T) {
	req, err := BuildPayload(PayloadInput{Text: "Hello"})
	require.NoError(t, err)

	require.Len(t, req.Contents, 1)
	assert.Equal(t, "user", req.Contents[0].Role)
	require.Len(t, req.Contents[0].Parts, 1)
	assert.Equal(t, "Hello", req.Contents[0].Parts[0].Text)
	assert.Nil(t, req.SystemInstruction)

	// Numeric defaults substituted for absent parameters.
	assert.Equal(t, DefaultTemperature, req.GenerationConfig.Temperature)
	assert.Equal(t, DefaultTopP, req.GenerationConfig.TopP)
	assert.Equal(t, DefaultMaxOutputTokens, req.GenerationConfig.MaxOutputTokens)
}

func TestBuildPayloadDeduplicatesInlineImages(t *testing.T) {
	dup := inlineImg("image/png", "samedata")
	other := inlineImg("image/png", "otherdata")
	sameDataOtherMime := inlineImg("image/jpeg", "samedata")

	req, err := BuildPayload(PayloadInput{
		Text:   "look",
		Images: []models.MessageImage{dup, other, dup, sameDataOtherMime, dup},
	})
	require.NoError(t, err)

	require.Len(t, req.Contents, 1)
	var blobs []Blob
	for _, p := range req.Contents[0].Parts {
		if p.InlineData != nil {
			blobs = append(blobs, *p.InlineData)
		}
	}
	// Exactly one copy per unique (mimeType, data) pair, first occurrence wins.
	require.Len(t, blobs, 3)
	assert.Equal(t, "image/png", blobs[0].MIMEType)
	assert.Equal(t, "image/png", blobs[1].MIMEType)
	assert.Equal(t, "image/jpeg", blobs[2].MIMEType)
}

func TestBuildPayloadSynthesizedTurnOrdering(t *testing.T) {
	req, err := BuildPayload(PayloadInput{
		Text:   "caption",
		Images: []models.MessageImage{inlineImg("image/png", "a"), inlineImg("image/png", "b")},
	})
	require.NoError(t, err)

	parts := req.Contents[0].Parts
	require.Len(t, parts, 3)
	assert.Equal(t, "caption", parts[0].Text, "text comes first in a synthesized turn")
	assert.NotNil(t, parts[1].InlineData)
	assert.NotNil(t, parts[2].InlineData)
}

func TestBuildPayloadStructuredPartsPreserveOrder(t *testing.T) {
	img := inlineImg("image/png", "x")
	req, err := BuildPayload(PayloadInput{
		Text: "ignored when parts are explicit",
		Parts: []models.RequestPart{
			{Image: &img},
			{Text: "after the image"},
		},
	})
	require.NoError(t, err)

	parts := req.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.NotNil(t, parts[0].InlineData, "explicit part order is verbatim")
	assert.Equal(t, "after the image", parts[1].Text)
}

func TestBuildPayloadEmptyFallsBackToGreeting(t *testing.T) {
	req, err := BuildPayload(PayloadInput{})
	require.NoError(t, err)

	require.Len(t, req.Contents, 1)
	require.Len(t, req.Contents[0].Parts, 1)
	assert.Equal(t, "Hello", req.Contents[0].Parts[0].Text)
}

func TestBuildPayloadImagePresentSuppressesGreeting(t *testing.T) {
	req, err := BuildPayload(PayloadInput{
		Images: []models.MessageImage{inlineImg("image/png", "pic")},
	})
	require.NoError(t, err)

	require.Len(t, req.Contents, 1)
	require.Len(t, req.Contents[0].Parts, 1)
	assert.NotNil(t, req.Contents[0].Parts[0].InlineData)
	assert.Empty(t, req.Contents[0].Parts[0].Text)
}

func TestBuildPayloadSystemInstruction(t *testing.T) {
	req, err := BuildPayload(PayloadInput{
		Text:   "hi",
		Params: models.GenerationParams{CustomInstructions: "be terse"},
	})
	require.NoError(t, err)

	require.NotNil(t, req.SystemInstruction)
	require.Len(t, req.SystemInstruction.Parts, 1)
	assert.Equal(t, "be terse", req.SystemInstruction.Parts[0].Text)
}

func TestBuildPayloadClampsParameters(t *testing.T) {
	temp := 3.5
	topP := -1.0
	req, err := BuildPayload(PayloadInput{
		Text:   "hi",
		Params: models.GenerationParams{Temperature: &temp, TopP: &topP},
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, req.GenerationConfig.Temperature)
	assert.Equal(t, 0.0, req.GenerationConfig.TopP)
}

func TestBuildPayloadRejectsOversizedInline(t *testing.T) {
	big := models.MessageImage{
		MimeType:   "image/png",
		InlineData: base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", imaging.InlineByteCap+1))),
	}
	_, err := BuildPayload(PayloadInput{Images: []models.MessageImage{big}})
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestBuildPayloadHistoryRoles(t *testing.T) {
	req, err := BuildPayload(PayloadInput{
		Text: "and now?",
		History: []models.Message{
			{Role: "user", Text: "first"},
			{Role: "assistant", Text: "second"},
		},
	})
	require.NoError(t, err)

	require.Len(t, req.Contents, 3)
	assert.Equal(t, "user", req.Contents[0].Role)
	assert.Equal(t, "model", req.Contents[1].Role)
	assert.Equal(t, "user", req.Contents[2].Role)
	assert.Equal(t, "and now?", req.Contents[2].Parts[0].Text)
}
