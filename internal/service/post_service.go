package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/postpilotapp/postpilot/internal/apperr"
	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/store"
	"github.com/postpilotapp/postpilot/internal/transfer"
)

type PostService interface {
	List(category string) []*models.Post
	Categories() []string
	Counters() models.Counters
	Create(ctx context.Context, req transfer.PostCreation) (*models.Post, error)
	Remove(ctx context.Context, postIDs []string) (int, error)
	ClearCategory(ctx context.Context, category string) error
	UpdateOverride(ctx context.Context, postID string, req transfer.OverrideUpdate) error
}

type postService struct {
	store    *store.Store
	media    MediaService
	validate *validator.Validate
}

func NewPostService(st *store.Store, media MediaService) PostService {
	return &postService{
		store:    st,
		media:    media,
		validate: validator.New(),
	}
}

func (s *postService) List(category string) []*models.Post {
	return s.store.Posts(category)
}

func (s *postService) Categories() []string {
	return s.store.Categories()
}

func (s *postService) Counters() models.Counters {
	return s.store.Counters()
}

// Create saves a manually added post. When raw bytes are supplied and the
// media archive is configured, an original-quality copy is stored there and
// referenced by URL; the bytes are still kept for the schedule-time upload.
func (s *postService) Create(ctx context.Context, req transfer.PostCreation) (*models.Post, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Wrap(apperr.Validation, "invalid post", err)
	}
	if len(req.FileData) == 0 && strings.TrimSpace(req.ImageURL) == "" && strings.TrimSpace(req.Caption) == "" {
		return nil, apperr.New(apperr.Validation, "post needs media or a caption")
	}

	post := &models.Post{
		Caption:    req.Caption,
		Title:      req.Title,
		ImageURL:   req.ImageURL,
		IsVideo:    req.IsVideo,
		IsTextOnly: len(req.FileData) == 0 && req.ImageURL == "",
		Source:     models.SourcePCUpload,
	}

	if len(req.FileData) > 0 {
		post.NeedsUpload = true
		post.FileData = req.FileData
		post.FileName = req.FileName

		if s.media != nil && s.media.Enabled() {
			url, err := s.media.Archive(ctx, req.FileName, req.FileData)
			if err != nil {
				slog.Info("media archive skipped", "error", err)
			} else {
				post.OriginalURL = url
			}
		}
	}

	s.store.AddPost(req.Category, post)
	if err := s.store.Flush(ctx); err != nil {
		return nil, err
	}
	return post, nil
}

// Remove deletes a selection and reports how many posts were actually
// removed; unknown ids are counted out, not errors.
func (s *postService) Remove(ctx context.Context, postIDs []string) (int, error) {
	removed := 0
	for _, id := range postIDs {
		if s.store.RemovePost(id) {
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.store.Flush(ctx)
}

func (s *postService) ClearCategory(ctx context.Context, category string) error {
	s.store.ClearCategory(category)
	return s.store.Flush(ctx)
}

func (s *postService) UpdateOverride(ctx context.Context, postID string, req transfer.OverrideUpdate) error {
	var err error
	if req.Clear {
		err = s.store.ClearOverride(postID, req.Target)
	} else {
		err = s.store.SaveOverride(postID, req.Target, req.Value)
	}
	if err != nil {
		return err
	}
	return s.store.Flush(ctx)
}
