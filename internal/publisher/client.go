package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/postpilotapp/postpilot/internal/apperr"
	"github.com/postpilotapp/postpilot/internal/models"
)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	sleep   func(time.Duration)
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: 60 * time.Second},
		sleep:   time.Sleep,
	}
}

func (c *Client) endpoint(p string) string {
	u := c.baseURL + p
	if c.apiKey != "" {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + "apikey=" + url.QueryEscape(c.apiKey)
	}
	return u
}

// Channels lists the configured publishing channels.
func (c *Client) Channels(ctx context.Context) ([]*models.Channel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/channels"), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "unable to connect to publishing API", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.responseError(resp)
	}

	var channels []*models.Channel
	if err := json.NewDecoder(resp.Body).Decode(&channels); err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "invalid channels response", err)
	}
	return channels, nil
}

// TestConnection verifies the API key by listing channels.
func (c *Client) TestConnection(ctx context.Context) (int, error) {
	if c.apiKey == "" {
		return 0, apperr.New(apperr.Validation, "API key not configured")
	}
	channels, err := c.Channels(ctx)
	if err != nil {
		return 0, err
	}
	return len(channels), nil
}

// UploadMedia uploads raw media bytes and returns the storage object id the
// scheduling payload references.
func (c *Client) UploadMedia(ctx context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperr.New(apperr.Validation, "file is empty")
	}
	if len(data) > maxUploadBytes {
		return "", apperr.New(apperr.Validation, "file is too large (>50MB)")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/medias/upload"), &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.Upstream, "media upload failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.responseError(resp)
	}

	var upload uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&upload); err != nil {
		return "", apperr.Wrap(apperr.Upstream, "invalid upload response", err)
	}
	if upload.StorageObjectID == "" {
		return "", apperr.New(apperr.Upstream, "upload succeeded but no storage_object_id found")
	}
	return upload.StorageObjectID, nil
}

// UploadMediaFromURL fetches an image and uploads it.
func (c *Client) UploadMediaFromURL(ctx context.Context, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.Validation, "invalid image URL", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.Upstream, fmt.Sprintf("failed to fetch image from %s", imageURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperr.New(apperr.Upstream, fmt.Sprintf("failed to fetch image: %d %s", resp.StatusCode, resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUploadBytes+1))
	if err != nil {
		return "", apperr.Wrap(apperr.Upstream, "failed to read image", err)
	}

	filename := path.Base(req.URL.Path)
	if filename == "." || filename == "/" {
		filename = fmt.Sprintf("image-%d.jpg", time.Now().UnixMilli())
	}
	return c.UploadMedia(ctx, filename, data)
}

// SchedulePost creates one scheduled post. Media is referenced by an
// existing storage id when available, otherwise uploaded from the image URL
// first.
func (c *Client) SchedulePost(ctx context.Context, opts PostOptions) (*Confirmation, error) {
	payload := scheduledPostRequest{
		Text:       opts.Caption,
		ChannelIDs: opts.ChannelIDs,
		ScheduleAt: opts.ScheduleAt.UTC().Format(time.RFC3339),
		IsDraft:    opts.Draft,
	}

	if !opts.IsTextOnly {
		storageID := opts.StorageID
		if storageID == "" {
			var err error
			storageID, err = c.UploadMediaFromURL(ctx, opts.ImageURL)
			if err != nil {
				return nil, err
			}
		}
		if opts.IsVideo {
			payload.VideoObjectIDs = []string{storageID}
		} else {
			payload.ImageObjectIDs = []string{storageID}
		}
	}

	if opts.Title != "" {
		payload.YoutubeSettings = &youtubeSettings{
			VideoTitle:         opts.Title,
			VideoDescription:   opts.Caption,
			VideoPrivacyStatus: "public",
			VideoType:          "video",
		}
	}

	return c.createScheduledPost(ctx, &payload)
}

// ScheduleAlbum uploads every image and creates a single multi-image post.
// Uploads are spaced half a second apart.
func (c *Client) ScheduleAlbum(ctx context.Context, opts AlbumOptions) (*Confirmation, error) {
	if len(opts.ImageURLs) == 0 {
		return nil, apperr.New(apperr.Validation, "album requires at least one image")
	}

	storageIDs := make([]string, 0, len(opts.ImageURLs))
	for i, imageURL := range opts.ImageURLs {
		storageID, err := c.UploadMediaFromURL(ctx, imageURL)
		if err != nil {
			return nil, fmt.Errorf("uploading album image %d/%d: %w", i+1, len(opts.ImageURLs), err)
		}
		storageIDs = append(storageIDs, storageID)
		c.sleep(500 * time.Millisecond)
	}

	payload := scheduledPostRequest{
		Text:           opts.Caption,
		ChannelIDs:     opts.ChannelIDs,
		ScheduleAt:     opts.ScheduleAt.UTC().Format(time.RFC3339),
		ImageObjectIDs: storageIDs,
		IsDraft:        opts.Draft,
	}
	if opts.Title != "" {
		payload.YoutubeSettings = &youtubeSettings{
			VideoTitle:         opts.Title,
			VideoDescription:   opts.Caption,
			VideoPrivacyStatus: "public",
			VideoType:          "video",
		}
	}

	confirmation, err := c.createScheduledPost(ctx, &payload)
	if err != nil {
		return nil, err
	}
	confirmation.ImageCount = len(storageIDs)
	return confirmation, nil
}

func (c *Client) createScheduledPost(ctx context.Context, payload *scheduledPostRequest) (*Confirmation, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/scheduled_posts/"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "unable to connect to publishing API", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.responseError(resp)
	}

	var result scheduledPostResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "invalid scheduling response", err)
	}
	if len(result.ScheduledPosts) == 0 {
		return nil, apperr.New(apperr.Upstream, "invalid API response - no scheduled_posts field found")
	}

	scheduled := result.ScheduledPosts[0]
	return &Confirmation{PostID: scheduled.ID, ScheduledAt: scheduled.ScheduleAt}, nil
}

// StoredObjectURL returns a download URL for an already-uploaded object,
// used when an original-quality copy must be referenced by URL.
func (c *Client) StoredObjectURL(storageID string) string {
	return strings.TrimSuffix(c.baseURL, "/v1") + "/stored_objects/" + storageID + "/download"
}

// responseError maps an HTTP failure to a tagged error carrying the
// user-facing message the UI shows for that class of failure.
func (c *Client) responseError(resp *http.Response) error {
	var parsed errorResponse
	detail := resp.Status
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil && len(raw) > 0 {
		if jsonErr := json.Unmarshal(raw, &parsed); jsonErr == nil && parsed.text() != "" {
			detail = parsed.text()
		}
	}

	slog.Info("publishing API error", "status", resp.StatusCode, "detail", detail)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return apperr.Wrap(apperr.Upstream, "authentication failed: check the publishing API key", errors.New(detail))
	case http.StatusForbidden:
		return apperr.Wrap(apperr.Upstream, "access denied: check the publishing API permissions", errors.New(detail))
	case http.StatusTooManyRequests:
		return apperr.Wrap(apperr.RateLimit, "rate limit exceeded: wait a moment and try again", errors.New(detail))
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperr.Wrap(apperr.Validation, "invalid request: check the post content and channel settings", errors.New(detail))
	case http.StatusInsufficientStorage:
		return apperr.Wrap(apperr.Quota, "storage quota exceeded", errors.New(detail))
	default:
		return apperr.Wrap(apperr.Upstream, fmt.Sprintf("publishing API error (%d)", resp.StatusCode), errors.New(detail))
	}
}
