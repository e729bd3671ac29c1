package models

// MessageImage is one image carried by a message, either inline (base64) or
// by durable URL once it has been promoted to blob storage.
type MessageImage struct {
	URL        string `json:"url,omitempty"`
	InlineData string `json:"inline_data,omitempty"` // base64, never persisted
	MimeType   string `json:"mime_type"`
	Name       string `json:"name,omitempty"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
}

// Message represents a single message in a conversation.
// This structure is what's stored in the JSONB messages field of the
// 'conversations' table, after StripInline has been applied.
type Message struct {
	Role            string         `json:"role"` // "user" or "assistant"
	Text            string         `json:"text"`
	Images          []MessageImage `json:"images,omitempty"`
	TimestampMillis int64          `json:"timestamp_millis"`
}

// StripInline returns a copy of the message safe for persistence: inline
// image payloads are dropped, only URL-bearing image records survive.
// Applying it twice yields the same result.
func (m Message) StripInline() Message {
	if len(m.Images) == 0 {
		return m
	}
	out := m
	out.Images = make([]MessageImage, 0, len(m.Images))
	for _, img := range m.Images {
		if img.URL == "" {
			// Inline-only image with no durable home: drop it entirely
			// rather than ballooning the document.
			continue
		}
		img.InlineData = ""
		out.Images = append(out.Images, img)
	}
	if len(out.Images) == 0 {
		out.Images = nil
	}
	return out
}

// UploadStatus tracks the lifecycle of a pending attachment upload.
type UploadStatus string

const (
	UploadStatusReady     UploadStatus = "READY"
	UploadStatusUploading UploadStatus = "UPLOADING"
	UploadStatusRetrying  UploadStatus = "RETRYING"
	UploadStatusSuccess   UploadStatus = "SUCCESS"
	UploadStatusError     UploadStatus = "ERROR"
)

// Attachment is a user-selected image in flight through the send pipeline.
// Data holds the original file bytes when a file handle was provided;
// attachments created from already-inline data have nil Data and are never
// re-uploaded.
type Attachment struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	MimeType    string       `json:"mime_type"`
	SizeBytes   int64        `json:"size_bytes"`
	Data        []byte       `json:"-"`
	InlineData  string       `json:"inline_data,omitempty"`
	Status      UploadStatus `json:"status"`
	UploadedURL string       `json:"uploaded_url,omitempty"`
	LastError   string       `json:"last_error,omitempty"`
}
