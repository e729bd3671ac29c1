package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"

	"gemchat-backend/internal/blobstore"
	"gemchat-backend/internal/genai"
	"gemchat-backend/internal/imaging"
	"gemchat-backend/internal/models"

	"github.com/google/uuid"
)

// ErrInvalidAttachment means an attachment in the request could not be
// decoded or transcoded. Client error, not retried.
var ErrInvalidAttachment = errors.New("invalid attachment")

// ModelInvoker is the slice of genai.Invoker the chat service needs; tests
// substitute a mock.
type ModelInvoker interface {
	Generate(ctx context.Context, model string, req *genai.GenerateContentRequest, apiKeyOverride string) (genai.GenerateResult, error)
}

// AttachmentUploader is the slice of blobstore.Uploader the chat service
// needs.
type AttachmentUploader interface {
	UploadBatch(ctx context.Context, ownerID uuid.UUID, attachments []blobstore.PendingAttachment, onStatus blobstore.StatusFunc) ([]blobstore.StoredObject, error)
}

// TranscodeFunc converts raw image bytes into a size-bounded inline
// representation. Production wiring uses imaging.Transcode.
type TranscodeFunc func(src []byte, mimeType string) (imaging.InlineImage, error)

// ChatService orchestrates the send pipeline: transcode attachments, promote
// file-backed ones to blob storage, assemble the payload, invoke the model
// with fallback, and reconcile the exchange into the conversation document.
type ChatService struct {
	conversations *ConversationService
	settings      *SettingsService
	invoker       ModelInvoker
	uploader      AttachmentUploader
	transcode     TranscodeFunc
}

// NewChatService creates a new ChatService.
func NewChatService(conversations *ConversationService, settings *SettingsService, invoker ModelInvoker, uploader AttachmentUploader, transcode TranscodeFunc) *ChatService {
	if transcode == nil {
		transcode = imaging.Transcode
	}
	return &ChatService{
		conversations: conversations,
		settings:      settings,
		invoker:       invoker,
		uploader:      uploader,
		transcode:     transcode,
	}
}

// SendMessage runs the full pipeline for one user turn. convID of uuid.Nil
// starts a new conversation.
//
// Ordering guarantee: the user's message is persisted strictly before the
// model is invoked, and the assistant's reply strictly after a successful
// invocation — a generation failure leaves the user message durably stored.
func (s *ChatService) SendMessage(ctx context.Context, userID, convID uuid.UUID, req models.SendMessageRequest) (*models.SendMessageResponse, error) {
	var override models.GenerationParams
	if req.Params != nil {
		override = req.Params.Normalize().Params
	}
	params, err := s.settings.ParamsFor(ctx, userID, override)
	if err != nil {
		return nil, err
	}

	// Transcode + promote user-selected files, then fold in images that
	// arrived already inline or already uploaded.
	attachmentImages, err := s.processAttachments(ctx, userID, req.Attachments)
	if err != nil {
		return nil, err
	}
	images := append(attachmentImages, req.Images...)

	// Load history before anything is written so the payload sees only
	// prior turns.
	var history []models.Message
	if convID != uuid.Nil {
		conv, err := s.conversations.Get(ctx, userID, convID)
		if err != nil {
			return nil, err
		}
		history = conv.Messages
	}

	// Build (and size-check) the payload before any write or network call.
	payload, err := genai.BuildPayload(genai.PayloadInput{
		Text:    req.Text,
		Images:  images,
		Parts:   req.Parts,
		History: history,
		Params:  params,
	})
	if err != nil {
		return nil, err
	}

	// Persist the user message first.
	userMsg := NewMessage("user", req.Text, images)
	var conv *models.ConversationResponse
	if convID == uuid.Nil {
		conv, err = s.conversations.Create(ctx, userID, []models.Message{userMsg})
	} else {
		conv, err = s.conversations.Append(ctx, userID, convID, userMsg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	result, err := s.invoker.Generate(ctx, params.ModelID, payload, params.APIKey)
	if err != nil {
		// The user message stays persisted; the failure surfaces as-is.
		return nil, err
	}

	assistantMsg := NewMessage("assistant", result.Text, nil)
	conv, err = s.conversations.Append(ctx, userID, conv.ID, assistantMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}

	return &models.SendMessageResponse{
		Conversation:    *conv,
		Reply:           result.Text,
		ModelUsed:       result.ModelUsed,
		FallbackApplied: result.FallbackApplied,
	}, nil
}

// Generate runs the stateless single-turn endpoint: no conversation history,
// nothing persisted.
func (s *ChatService) Generate(ctx context.Context, userID uuid.UUID, req models.GenerateRequest) (*models.GenerateResponse, error) {
	norm := req.Normalize()
	params, err := s.settings.ParamsFor(ctx, userID, norm.Params)
	if err != nil {
		return nil, err
	}

	payload, err := genai.BuildPayload(genai.PayloadInput{
		Text:   norm.Prompt,
		Images: norm.Images,
		Parts:  norm.Parts,
		Params: params,
	})
	if err != nil {
		return nil, err
	}

	result, err := s.invoker.Generate(ctx, params.ModelID, payload, params.APIKey)
	if err != nil {
		return nil, err
	}

	return &models.GenerateResponse{
		Reply:           result.Text,
		ModelUsed:       result.ModelUsed,
		FallbackApplied: result.FallbackApplied,
	}, nil
}

// PromoteAttachments uploads user-selected files to blob storage ahead of a
// send and returns their durable records.
func (s *ChatService) PromoteAttachments(ctx context.Context, userID uuid.UUID, uploads []models.AttachmentUpload) ([]models.StoredObjectResponse, error) {
	pending, err := decodeUploads(uploads)
	if err != nil {
		return nil, err
	}

	objects, err := s.uploader.UploadBatch(ctx, userID, pending, logStatus)
	if err != nil {
		return nil, err
	}

	out := make([]models.StoredObjectResponse, 0, len(objects))
	for _, obj := range objects {
		out = append(out, models.StoredObjectResponse{
			URL:       obj.URL,
			MimeType:  obj.MimeType,
			Name:      obj.Name,
			SizeBytes: obj.SizeBytes,
			Bucket:    obj.Bucket,
		})
	}
	return out, nil
}

// processAttachments transcodes each user-selected file and promotes the
// originals to blob storage. The resulting image records carry both the
// inline representation (for the payload) and the durable URL (the only part
// that survives persistence).
func (s *ChatService) processAttachments(ctx context.Context, userID uuid.UUID, uploads []models.AttachmentUpload) ([]models.MessageImage, error) {
	if len(uploads) == 0 {
		return nil, nil
	}

	pending, err := decodeUploads(uploads)
	if err != nil {
		return nil, err
	}

	inlines := make([]imaging.InlineImage, len(pending))
	for i, p := range pending {
		inline, err := s.transcode(p.Data, p.MimeType)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to transcode %s: %v", ErrInvalidAttachment, p.Name, err)
		}
		inlines[i] = inline
	}

	objects, err := s.uploader.UploadBatch(ctx, userID, pending, logStatus)
	if err != nil {
		return nil, err
	}

	images := make([]models.MessageImage, len(pending))
	for i := range pending {
		images[i] = models.MessageImage{
			URL:        objects[i].URL,
			InlineData: inlines[i].Data,
			MimeType:   inlines[i].MimeType,
			Name:       pending[i].Name,
			SizeBytes:  objects[i].SizeBytes,
		}
	}
	return images, nil
}

// decodeUploads turns wire attachments into pending uploads.
func decodeUploads(uploads []models.AttachmentUpload) ([]blobstore.PendingAttachment, error) {
	pending := make([]blobstore.PendingAttachment, 0, len(uploads))
	for i, up := range uploads {
		data, err := base64.StdEncoding.DecodeString(up.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: attachment %d (%s) is not valid base64", ErrInvalidAttachment, i, up.Name)
		}
		pending = append(pending, blobstore.PendingAttachment{
			ID:       uuid.NewString(),
			Name:     up.Name,
			MimeType: up.MimeType,
			Data:     data,
		})
	}
	return pending, nil
}

// logStatus reflects per-attachment upload progress into the server log.
func logStatus(attachmentID string, status blobstore.Status, err error) {
	if err != nil {
		log.Printf("[ChatService] Attachment %s: %s (%v)", attachmentID, status, err)
		return
	}
	log.Printf("[ChatService] Attachment %s: %s", attachmentID, status)
}
