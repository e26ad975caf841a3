// Package dispatch turns a selection of saved posts into scheduled posts on
// the publishing API: it resolves effective text, computes send times, and
// walks the selection in order, stopping at the first failure.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/postpilotapp/postpilot/internal/apperr"
	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/publisher"
	"github.com/postpilotapp/postpilot/internal/store"
	"github.com/postpilotapp/postpilot/internal/transfer"
)

// Publisher is the slice of the publishing client the dispatcher needs.
type Publisher interface {
	UploadMedia(ctx context.Context, filename string, data []byte) (string, error)
	SchedulePost(ctx context.Context, opts publisher.PostOptions) (*publisher.Confirmation, error)
	ScheduleAlbum(ctx context.Context, opts publisher.AlbumOptions) (*publisher.Confirmation, error)
	StoredObjectURL(storageID string) string
}

// PostResult is the outcome for one post in a run.
type PostResult struct {
	PostID      string    `json:"post_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	RemoteID    string    `json:"remote_id,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// RunResult summarizes a dispatch run. Aborted reports that the run stopped
// before reaching the end of the selection.
type RunResult struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Aborted   bool         `json:"aborted"`
	Results   []PostResult `json:"results"`
}

const interPostPause = time.Second

type Dispatcher struct {
	store    *store.Store
	pub      Publisher
	validate *validator.Validate

	// test seams
	sleep     func(context.Context, time.Duration)
	randFloat func() float64
	now       func() time.Time
}

func NewDispatcher(st *store.Store, pub Publisher) *Dispatcher {
	return &Dispatcher{
		store:     st,
		pub:       pub,
		validate:  validator.New(),
		sleep:     sleepCtx,
		randFloat: rand.Float64,
		now:       time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ValidateRequest performs the same checks Run does before any side effect,
// so a request can be rejected before it is queued for execution.
func (d *Dispatcher) ValidateRequest(req transfer.DispatchRequest) error {
	if err := d.validate.Struct(req); err != nil {
		return apperr.Wrap(apperr.Validation, "invalid dispatch request", err)
	}
	if _, err := time.Parse(time.RFC3339, req.StartTime); err != nil {
		return apperr.Wrap(apperr.Validation, "start_time must be RFC3339", err)
	}
	return nil
}

// Run executes one dispatch request. Posts are processed in selection order,
// one second apart; the first scheduling failure aborts the rest of the run
// but keeps everything already scheduled. The store is flushed once at the
// end regardless of outcome.
func (d *Dispatcher) Run(ctx context.Context, req transfer.DispatchRequest) (*RunResult, error) {
	if err := d.ValidateRequest(req); err != nil {
		return nil, err
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, "start_time must be RFC3339", err)
	}
	if floor := d.now().Add(time.Minute); start.Before(floor) {
		start = floor
	}

	posts := d.store.Selection(req.PostIDs)
	if len(posts) == 0 {
		return nil, apperr.New(apperr.NotFound, "none of the selected posts were found")
	}

	intent := IntentFromForm(req.Title, req.Caption, req.TitleEdited, req.CaptionEdited)

	if req.Album {
		return d.runAlbum(ctx, req, posts, start, intent)
	}

	result := &RunResult{Total: len(posts)}
	for i, post := range posts {
		if i > 0 {
			d.sleep(ctx, interPostPause)
		}
		if err := ctx.Err(); err != nil {
			result.Aborted = true
			break
		}

		sendAt := SendTime(req.IntervalType, start, req.IntervalMinutes, i, d.randFloat)
		confirmation, err := d.dispatchOne(ctx, post, intent, req, sendAt)
		if err != nil {
			slog.Info("dispatch aborted", "post", post.ID, "position", i, "error", err)
			result.Results = append(result.Results, PostResult{
				PostID: post.ID, ScheduledAt: sendAt, Error: err.Error(),
			})
			result.Aborted = true
			break
		}

		result.Succeeded++
		result.Results = append(result.Results, PostResult{
			PostID: post.ID, ScheduledAt: sendAt, RemoteID: confirmation.PostID,
		})
	}

	if err := d.store.Flush(ctx); err != nil {
		slog.Info(err.Error())
	}
	return result, nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, post *models.Post, intent BatchEditIntent, req transfer.DispatchRequest, sendAt time.Time) (*publisher.Confirmation, error) {
	opts := publisher.PostOptions{
		Caption:    ResolveCaption(post, intent),
		Title:      ResolveTitle(post, intent),
		ChannelIDs: req.Channels,
		ScheduleAt: sendAt,
		IsTextOnly: post.IsTextOnly,
		IsVideo:    post.IsVideo,
		Draft:      req.Draft,
	}

	if !post.IsTextOnly {
		if post.NeedsUpload && len(post.FileData) > 0 {
			storageID, err := d.pub.UploadMedia(ctx, uploadFilename(post), post.FileData)
			switch {
			case err == nil:
				d.store.SetStorageID(post.ID, storageID)
				post.StorageID = storageID
			case apperr.IsQuota(err):
				// Publisher storage is full; the media selection below picks
				// the best remaining hosted copy (original, then preview).
				slog.Warn("upload quota reached, falling back to hosted URL", "post", post.ID)
			default:
				return nil, err
			}
		}

		switch {
		case post.StorageID != "":
			opts.StorageID = post.StorageID
		case post.OriginalURL != "":
			opts.ImageURL = post.OriginalURL
		default:
			opts.ImageURL = post.ImageURL
		}
		if opts.StorageID == "" && opts.ImageURL == "" {
			return nil, apperr.New(apperr.Validation, "post has no usable media")
		}
	}

	return d.pub.SchedulePost(ctx, opts)
}

// runAlbum collapses the whole selection into one multi-image post. Posts
// whose media already lives with the publisher are referenced through their
// stored-object download URL; text comes from the first post unless a
// uniform edit applies.
func (d *Dispatcher) runAlbum(ctx context.Context, req transfer.DispatchRequest, posts []*models.Post, start time.Time, intent BatchEditIntent) (*RunResult, error) {
	urls := make([]string, 0, len(posts))
	for _, post := range posts {
		switch {
		case post.StorageID != "":
			urls = append(urls, d.pub.StoredObjectURL(post.StorageID))
		case post.OriginalURL != "":
			urls = append(urls, post.OriginalURL)
		case post.ImageURL != "":
			urls = append(urls, post.ImageURL)
		}
	}
	if len(urls) == 0 {
		return nil, apperr.New(apperr.Validation, "album requires at least one post with media")
	}

	confirmation, err := d.pub.ScheduleAlbum(ctx, publisher.AlbumOptions{
		ImageURLs:  urls,
		Caption:    ResolveCaption(posts[0], intent),
		Title:      ResolveTitle(posts[0], intent),
		ChannelIDs: req.Channels,
		ScheduleAt: start,
		Draft:      req.Draft,
	})
	if err != nil {
		return nil, err
	}

	result := &RunResult{Total: len(posts), Succeeded: len(posts)}
	for _, post := range posts {
		result.Results = append(result.Results, PostResult{
			PostID: post.ID, ScheduledAt: start, RemoteID: confirmation.PostID,
		})
	}
	if err := d.store.Flush(ctx); err != nil {
		slog.Info(err.Error())
	}
	return result, nil
}

func uploadFilename(post *models.Post) string {
	if post.FileName != "" {
		return post.FileName
	}
	ext := "jpg"
	if post.IsVideo {
		ext = "mp4"
	}
	return fmt.Sprintf("%s.%s", post.ID, ext)
}
