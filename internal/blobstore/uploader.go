package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// maxAttemptsPerBucket bounds retries against a single bucket.
	maxAttemptsPerBucket = 3
	// retryBackoff is the fixed delay between attempts on the same bucket.
	retryBackoff = 3 * time.Second
)

// Status is a per-attachment upload phase reported through the status
// callback, so the caller can reflect progress without polling.
type Status string

const (
	StatusUploading Status = "uploading"
	StatusRetrying  Status = "retrying"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// StatusFunc receives per-attachment phase transitions. err is non-nil only
// for StatusRetrying and StatusError.
type StatusFunc func(attachmentID string, status Status, err error)

// PendingAttachment is one attachment to upload. Data holds the original
// file bytes.
type PendingAttachment struct {
	ID       string
	Name     string
	MimeType string
	Data     []byte
}

// StoredObject is the durable record produced for an uploaded attachment.
type StoredObject struct {
	URL       string `json:"url"`
	MimeType  string `json:"mime_type"`
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	Bucket    string `json:"bucket"`
}

// Uploader persists attachments to blob storage, rotating across candidate
// buckets and retrying transient failures.
type Uploader struct {
	endpoint string   // e.g. https://firebasestorage.googleapis.com/v0
	buckets  []string // primary first, then fallbacks
	client   *http.Client
	probes   *ProbeCache

	// sleep is swapped out in tests so retries don't wall-clock wait.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewUploader creates an Uploader over the given storage endpoint and
// candidate buckets (primary first).
func NewUploader(endpoint string, buckets []string, client *http.Client, probes *ProbeCache) *Uploader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Uploader{
		endpoint: strings.TrimRight(endpoint, "/"),
		buckets:  buckets,
		client:   client,
		probes:   probes,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// UploadBatch uploads the given attachments sequentially and returns their
// durable records. Before the first upload it probes the primary bucket
// endpoint and fails the whole batch immediately if it is unreachable.
//
// If any attachment exhausts every candidate bucket, the batch fails with
// the last observed error, and every attempted attachment has been reported
// as error through onStatus before this returns — no silent partial success.
func (u *Uploader) UploadBatch(ctx context.Context, ownerID uuid.UUID, attachments []PendingAttachment, onStatus StatusFunc) ([]StoredObject, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	if onStatus == nil {
		onStatus = func(string, Status, error) {}
	}
	if len(u.buckets) == 0 {
		return nil, errors.New("no storage buckets configured")
	}

	// Out-of-band preflight: a misconfigured backend should not burn the
	// per-file retry budget.
	if err := u.probes.Check(ctx, u.client, u.bucketRoot(u.buckets[0])); err != nil {
		for _, att := range attachments {
			onStatus(att.ID, StatusError, err)
		}
		return nil, err
	}

	objects := make([]StoredObject, 0, len(attachments))
	for i, att := range attachments {
		obj, err := u.uploadOne(ctx, ownerID, i, att, onStatus)
		if err != nil {
			onStatus(att.ID, StatusError, err)
			return nil, err
		}
		onStatus(att.ID, StatusSuccess, nil)
		objects = append(objects, obj)
	}
	return objects, nil
}

// uploadOne walks the candidate buckets for a single attachment.
func (u *Uploader) uploadOne(ctx context.Context, ownerID uuid.UUID, index int, att PendingAttachment, onStatus StatusFunc) (StoredObject, error) {
	objectPath := u.objectPath(ownerID, index, att.Name)
	onStatus(att.ID, StatusUploading, nil)

	var lastErr error
	for _, bucket := range u.buckets {
		for attempt := 1; attempt <= maxAttemptsPerBucket; attempt++ {
			obj, err := u.put(ctx, bucket, objectPath, att)
			if err == nil {
				return obj, nil
			}
			lastErr = err

			var upErr *UploadError
			if !errors.As(err, &upErr) || !upErr.Class.Transient() {
				// auth / unknown: terminal, abort immediately.
				log.Printf("[Uploader] Terminal failure for %s on bucket %s: %v", att.ID, bucket, err)
				return StoredObject{}, err
			}

			log.Printf("[Uploader] Attempt %d/%d for %s on bucket %s failed (%s): %v",
				attempt, maxAttemptsPerBucket, att.ID, bucket, upErr.Class, upErr.Err)

			if attempt < maxAttemptsPerBucket {
				onStatus(att.ID, StatusRetrying, err)
				if serr := u.sleep(ctx, retryBackoff); serr != nil {
					return StoredObject{}, serr
				}
			}
		}
		// Retries for this bucket are exhausted; move on to the next
		// candidate (bucket rotation is what resolves cors rejections).
		log.Printf("[Uploader] Bucket %s exhausted for %s, rotating", bucket, att.ID)
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("upload of %s failed with no recorded error", att.Name)
	}
	return StoredObject{}, lastErr
}

// objectPath builds a collision-resistant storage path.
func (u *Uploader) objectPath(ownerID uuid.UUID, index int, name string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("uploads/%s/%d-%d-%s-%s", ownerID, time.Now().UnixMilli(), index, suffix, sanitizeName(name))
}

// sanitizeName keeps object names path- and URL-safe.
func sanitizeName(name string) string {
	if name == "" {
		return "attachment"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// put performs one upload attempt against one bucket and classifies any
// failure.
func (u *Uploader) put(ctx context.Context, bucket, objectPath string, att PendingAttachment) (StoredObject, error) {
	uploadURL := fmt.Sprintf("%s/b/%s/o?name=%s", u.endpoint, url.PathEscape(bucket), url.QueryEscape(objectPath))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(att.Data))
	if err != nil {
		return StoredObject{}, &UploadError{Class: FailureUnknown, Bucket: bucket, Err: err}
	}
	req.Header.Set("Content-Type", att.MimeType)

	resp, err := u.client.Do(req)
	if err != nil {
		return StoredObject{}, &UploadError{Class: classifyTransport(err), Bucket: bucket, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return StoredObject{}, &UploadError{Class: FailureNetwork, Bucket: bucket, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return StoredObject{}, &UploadError{
			Class:  classifyStatus(resp.StatusCode),
			Bucket: bucket,
			Err:    fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var meta struct {
		Name           string `json:"name"`
		DownloadTokens string `json:"downloadTokens"`
	}
	if err := json.Unmarshal(body, &meta); err != nil || meta.Name == "" {
		meta.Name = objectPath
	}

	downloadURL := fmt.Sprintf("%s/b/%s/o/%s?alt=media", u.endpoint, url.PathEscape(bucket), url.QueryEscape(meta.Name))
	if meta.DownloadTokens != "" {
		downloadURL += "&token=" + url.QueryEscape(meta.DownloadTokens)
	}

	return StoredObject{
		URL:       downloadURL,
		MimeType:  att.MimeType,
		Name:      att.Name,
		SizeBytes: int64(len(att.Data)),
		Bucket:    bucket,
	}, nil
}

// bucketRoot is the URL probed for reachability.
func (u *Uploader) bucketRoot(bucket string) string {
	return fmt.Sprintf("%s/b/%s/o", u.endpoint, url.PathEscape(bucket))
}
