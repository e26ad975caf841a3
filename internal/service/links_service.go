package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/postpilotapp/postpilot/internal/apperr"
	"github.com/postpilotapp/postpilot/internal/storage"
)

// LinksService keeps the operator's saved-link list. Links live under their
// own key, separate from the post index, so link edits never rewrite the
// much larger savedItems document.
type LinksService interface {
	List(ctx context.Context) ([]string, error)
	Add(ctx context.Context, link string) error
	Remove(ctx context.Context, link string) error
}

type linksService struct {
	backend storage.Backend
}

func NewLinksService(backend storage.Backend) LinksService {
	return &linksService{backend: backend}
}

func (s *linksService) List(ctx context.Context) ([]string, error) {
	result, err := s.backend.Get(ctx, storage.KeySavedLinks)
	if err != nil {
		return nil, err
	}

	var links []string
	if raw, ok := result[storage.KeySavedLinks]; ok {
		if err := json.Unmarshal(raw, &links); err != nil {
			return nil, err
		}
	}
	return links, nil
}

// Add appends the link, deduplicating on exact match.
func (s *linksService) Add(ctx context.Context, link string) error {
	link = strings.TrimSpace(link)
	if link == "" {
		return apperr.New(apperr.Validation, "link is required")
	}

	links, err := s.List(ctx)
	if err != nil {
		return err
	}
	for _, existing := range links {
		if existing == link {
			return nil
		}
	}
	return s.save(ctx, append(links, link))
}

func (s *linksService) Remove(ctx context.Context, link string) error {
	links, err := s.List(ctx)
	if err != nil {
		return err
	}

	kept := links[:0]
	for _, existing := range links {
		if existing != link {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(links) {
		return apperr.New(apperr.NotFound, "link not found")
	}
	return s.save(ctx, kept)
}

func (s *linksService) save(ctx context.Context, links []string) error {
	raw, err := json.Marshal(links)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, map[string][]byte{storage.KeySavedLinks: raw})
}
