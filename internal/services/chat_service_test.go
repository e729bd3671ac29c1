package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"gemchat-backend/internal/blobstore"
	"gemchat-backend/internal/crypto"
	"gemchat-backend/internal/genai"
	"gemchat-backend/internal/imaging"
	"gemchat-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockInvoker records calls and replays canned results.
type mockInvoker struct {
	result   genai.GenerateResult
	err      error
	payloads []*genai.GenerateContentRequest
	modelIDs []string
	apiKeys  []string
}

func (m *mockInvoker) Generate(_ context.Context, model string, req *genai.GenerateContentRequest, apiKeyOverride string) (genai.GenerateResult, error) {
	m.modelIDs = append(m.modelIDs, model)
	m.payloads = append(m.payloads, req)
	m.apiKeys = append(m.apiKeys, apiKeyOverride)
	if m.err != nil {
		return genai.GenerateResult{}, m.err
	}
	res := m.result
	if res.ModelUsed == "" {
		res.ModelUsed = model
	}
	return res, nil
}

// mockUploader returns a URL per attachment without touching the network.
type mockUploader struct {
	err     error
	batches [][]blobstore.PendingAttachment
}

func (m *mockUploader) UploadBatch(_ context.Context, _ uuid.UUID, attachments []blobstore.PendingAttachment, onStatus blobstore.StatusFunc) ([]blobstore.StoredObject, error) {
	m.batches = append(m.batches, attachments)
	if m.err != nil {
		for _, att := range attachments {
			onStatus(att.ID, blobstore.StatusError, m.err)
		}
		return nil, m.err
	}
	objs := make([]blobstore.StoredObject, len(attachments))
	for i, att := range attachments {
		onStatus(att.ID, blobstore.StatusSuccess, nil)
		objs[i] = blobstore.StoredObject{
			URL:       "https://storage.example/o/" + att.Name,
			MimeType:  att.MimeType,
			Name:      att.Name,
			SizeBytes: int64(len(att.Data)),
			Bucket:    "test-bucket",
		}
	}
	return objs, nil
}

func passthroughTranscode(src []byte, mimeType string) (imaging.InlineImage, error) {
	return imaging.InlineImage{Data: base64.StdEncoding.EncodeToString(src), MimeType: mimeType}, nil
}

func newTestChatService(invoker *mockInvoker, uploader *mockUploader) (*ChatService, *memStore) {
	st := newMemStore()
	convs := NewConversationService(st)
	settings := NewSettingsService(st, nil, "gemini-default")
	return NewChatService(convs, settings, invoker, uploader, passthroughTranscode), st
}

func TestSendMessageTextOnlyEndToEnd(t *testing.T) {
	invoker := &mockInvoker{result: genai.GenerateResult{Text: "Hi! How can I help?"}}
	svc, _ := newTestChatService(invoker, &mockUploader{})
	userID := uuid.New()

	resp, err := svc.SendMessage(context.Background(), userID, uuid.Nil, models.SendMessageRequest{Text: "Hello"})
	require.NoError(t, err)

	// The payload carried a single user turn with one text part.
	require.Len(t, invoker.payloads, 1)
	payload := invoker.payloads[0]
	require.Len(t, payload.Contents, 1)
	require.Len(t, payload.Contents[0].Parts, 1)
	assert.Equal(t, "Hello", payload.Contents[0].Parts[0].Text)
	assert.Equal(t, []string{"gemini-default"}, invoker.modelIDs)

	// Two messages persisted with empty image lists.
	require.Len(t, resp.Conversation.Messages, 2)
	assert.Equal(t, "user", resp.Conversation.Messages[0].Role)
	assert.Empty(t, resp.Conversation.Messages[0].Images)
	assert.Equal(t, "assistant", resp.Conversation.Messages[1].Role)
	assert.Empty(t, resp.Conversation.Messages[1].Images)

	assert.Equal(t, "Hi! How can I help?", resp.Reply)
	assert.Equal(t, "gemini-default", resp.ModelUsed)
	assert.False(t, resp.FallbackApplied)
	assert.Equal(t, "Hello", resp.Conversation.Title)
	assert.Equal(t, []string{""}, invoker.apiKeys, "no stored key means the server credential is used")
}

func TestSendMessageUsesStoredAPIKeyOverride(t *testing.T) {
	invoker := &mockInvoker{result: genai.GenerateResult{Text: "ok"}}
	st := newMemStore()
	aead, err := crypto.NewAESGCM(bytes.Repeat([]byte{0x11}, 32))
	require.NoError(t, err)
	convs := NewConversationService(st)
	settings := NewSettingsService(st, aead, "gemini-default")
	svc := NewChatService(convs, settings, invoker, &mockUploader{}, passthroughTranscode)
	userID := uuid.New()

	key := "sk-user-own-key"
	_, err = settings.Update(context.Background(), userID, models.UpdateSettingsRequest{APIKey: &key})
	require.NoError(t, err)

	_, err = svc.SendMessage(context.Background(), userID, uuid.Nil, models.SendMessageRequest{Text: "hi"})
	require.NoError(t, err)

	// The stored key is unsealed and authenticates the invocation.
	assert.Equal(t, []string{"sk-user-own-key"}, invoker.apiKeys)
}

func TestSendMessageImageOnlyEndToEnd(t *testing.T) {
	invoker := &mockInvoker{result: genai.GenerateResult{Text: "Nice photo."}}
	uploader := &mockUploader{}
	svc, _ := newTestChatService(invoker, uploader)
	userID := uuid.New()

	resp, err := svc.SendMessage(context.Background(), userID, uuid.Nil, models.SendMessageRequest{
		Attachments: []models.AttachmentUpload{{
			Name:     "big.png",
			MimeType: "image/png",
			Data:     base64.StdEncoding.EncodeToString([]byte("pretend-png-bytes")),
		}},
	})
	require.NoError(t, err)

	// Exactly one upload batch ran, for the file-backed attachment.
	require.Len(t, uploader.batches, 1)
	require.Len(t, uploader.batches[0], 1)

	// The payload carried one image part and no text part — no greeting
	// fallback applies when an image is present.
	payload := invoker.payloads[0]
	require.Len(t, payload.Contents, 1)
	require.Len(t, payload.Contents[0].Parts, 1)
	assert.NotNil(t, payload.Contents[0].Parts[0].InlineData)
	assert.Empty(t, payload.Contents[0].Parts[0].Text)

	// The persisted user message kept only the durable URL.
	userMsg := resp.Conversation.Messages[0]
	require.Len(t, userMsg.Images, 1)
	assert.Equal(t, "https://storage.example/o/big.png", userMsg.Images[0].URL)
	assert.Empty(t, userMsg.Images[0].InlineData)

	// The image-only opener got the placeholder title; the assistant's
	// reply is the first text and takes it over.
	assert.Equal(t, "Nice photo.", resp.Conversation.Title)
}

func TestSendMessageGenerationFailureLeavesUserMessagePersisted(t *testing.T) {
	invoker := &mockInvoker{err: &genai.APIError{StatusCode: 500, Message: "internal"}}
	svc, st := newTestChatService(invoker, &mockUploader{})
	userID := uuid.New()

	_, err := svc.SendMessage(context.Background(), userID, uuid.Nil, models.SendMessageRequest{Text: "are you there?"})
	require.Error(t, err)

	var apiErr *genai.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.StatusCode)

	// The user message was written strictly before the invocation.
	convs, lerr := st.ListConversationsByOwner(context.Background(), userID)
	require.NoError(t, lerr)
	require.Len(t, convs, 1)
	assert.Contains(t, string(convs[0].Messages), "are you there?")
	assert.NotContains(t, string(convs[0].Messages), "assistant")
}

func TestSendMessageOversizedInlineRejectedBeforeAnyWrite(t *testing.T) {
	invoker := &mockInvoker{}
	svc, st := newTestChatService(invoker, &mockUploader{})
	userID := uuid.New()

	big := make([]byte, imaging.InlineByteCap+10)
	_, err := svc.SendMessage(context.Background(), userID, uuid.Nil, models.SendMessageRequest{
		Images: []models.MessageImage{{
			MimeType:   "image/png",
			InlineData: base64.StdEncoding.EncodeToString(big),
		}},
	})
	require.ErrorIs(t, err, genai.ErrPayloadTooLarge)

	assert.Empty(t, invoker.payloads, "no network call after a cap rejection")
	convs, _ := st.ListConversationsByOwner(context.Background(), userID)
	assert.Empty(t, convs, "nothing persisted after a cap rejection")
}

func TestSendMessageUploadFailureAbortsSend(t *testing.T) {
	invoker := &mockInvoker{}
	uploader := &mockUploader{err: errors.New("bucket exhausted")}
	svc, st := newTestChatService(invoker, uploader)
	userID := uuid.New()

	_, err := svc.SendMessage(context.Background(), userID, uuid.Nil, models.SendMessageRequest{
		Text: "with file",
		Attachments: []models.AttachmentUpload{{
			Name: "f.png", MimeType: "image/png",
			Data: base64.StdEncoding.EncodeToString([]byte("x")),
		}},
	})
	require.Error(t, err)
	assert.Empty(t, invoker.payloads)
	convs, _ := st.ListConversationsByOwner(context.Background(), userID)
	assert.Empty(t, convs)
}

func TestSendMessageAppendsToExistingConversation(t *testing.T) {
	invoker := &mockInvoker{result: genai.GenerateResult{Text: "second answer"}}
	svc, _ := newTestChatService(invoker, &mockUploader{})
	userID := uuid.New()

	first, err := svc.SendMessage(context.Background(), userID, uuid.Nil, models.SendMessageRequest{Text: "first question"})
	require.NoError(t, err)

	second, err := svc.SendMessage(context.Background(), userID, first.Conversation.ID, models.SendMessageRequest{Text: "second question"})
	require.NoError(t, err)

	require.Len(t, second.Conversation.Messages, 4)

	// The second payload saw the first exchange as history.
	secondPayload := invoker.payloads[1]
	require.Len(t, secondPayload.Contents, 3)
	assert.Equal(t, "user", secondPayload.Contents[0].Role)
	assert.Equal(t, "model", secondPayload.Contents[1].Role)
	assert.Equal(t, "second question", secondPayload.Contents[2].Parts[0].Text)
}

func TestGenerateStatelessUsesRequestOverrides(t *testing.T) {
	invoker := &mockInvoker{result: genai.GenerateResult{Text: "ok"}}
	svc, st := newTestChatService(invoker, &mockUploader{})
	userID := uuid.New()

	topP := 0.5
	resp, err := svc.Generate(context.Background(), userID, models.GenerateRequest{
		Prompt:    "ping",
		Model:     "gemini-exp",
		TopPSnake: &topP, // legacy spelling resolves through the adapter
	})
	require.NoError(t, err)

	assert.Equal(t, "ok", resp.Reply)
	assert.Equal(t, []string{"gemini-exp"}, invoker.modelIDs)
	assert.Equal(t, 0.5, invoker.payloads[0].GenerationConfig.TopP)

	convs, _ := st.ListConversationsByOwner(context.Background(), userID)
	assert.Empty(t, convs, "the stateless endpoint persists nothing")
}

func TestPromoteAttachments(t *testing.T) {
	uploader := &mockUploader{}
	svc, _ := newTestChatService(&mockInvoker{}, uploader)

	objs, err := svc.PromoteAttachments(context.Background(), uuid.New(), []models.AttachmentUpload{
		{Name: "a.png", MimeType: "image/png", Data: base64.StdEncoding.EncodeToString([]byte("aa"))},
		{Name: "b.jpg", MimeType: "image/jpeg", Data: base64.StdEncoding.EncodeToString([]byte("bbb"))},
	})
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "https://storage.example/o/a.png", objs[0].URL)
	assert.Equal(t, int64(3), objs[1].SizeBytes)
	assert.Equal(t, "test-bucket", objs[0].Bucket)
}

func TestPromoteAttachmentsRejectsBadBase64(t *testing.T) {
	svc, _ := newTestChatService(&mockInvoker{}, &mockUploader{})
	_, err := svc.PromoteAttachments(context.Background(), uuid.New(), []models.AttachmentUpload{
		{Name: "a.png", MimeType: "image/png", Data: "!!! not base64 !!!"},
	})
	require.Error(t, err)
}
