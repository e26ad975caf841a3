package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/postpilotapp/postpilot/internal/apperr"
	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/storage"
)

// Flush serializes the whole index and writes it in one shot. A quota
// failure triggers exactly one cleanup pass and one retry; a second failure
// propagates.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

func (s *Store) flushLocked(ctx context.Context) error {
	entries, err := s.encodeLocked()
	if err != nil {
		return err
	}

	err = s.backend.Set(ctx, entries)
	if err == nil {
		return nil
	}
	if !apperr.IsQuota(err) {
		return err
	}

	slog.Warn("storage quota exceeded, attempting cleanup", "error", err)
	if _, cleanupErr := s.cleanupLocked(ctx); cleanupErr != nil {
		slog.Error("storage cleanup failed", "error", cleanupErr)
		return err
	}

	entries, err = s.encodeLocked()
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, entries)
}

func (s *Store) encodeLocked() (map[string][]byte, error) {
	items, err := json.Marshal(s.savedItems)
	if err != nil {
		return nil, err
	}
	cats, err := json.Marshal(s.categories)
	if err != nil {
		return nil, err
	}
	counters, err := json.Marshal(s.counters)
	if err != nil {
		return nil, err
	}
	return map[string][]byte{
		storage.KeySavedItems: items,
		storage.KeyCategories: cats,
		storage.KeyCounters:   counters,
	}, nil
}

// Cleanup frees space without touching anything the operator still needs:
// already-uploaded AI posts lose their redundant inline image data, AI posts
// older than 30 days are dropped entirely, and scratch keys are removed from
// the backend. Reports whether anything was reclaimed.
func (s *Store) Cleanup(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanupLocked(ctx)
}

func (s *Store) cleanupLocked(ctx context.Context) (bool, error) {
	before, err := s.backend.BytesInUse(ctx)
	if err != nil {
		slog.Info(err.Error())
	}

	cleaned := false
	cutoff := time.Now().Add(-30 * 24 * time.Hour).UnixMilli()

	for category, posts := range s.savedItems {
		kept := posts[:0]
		for _, post := range posts {
			if post.Source == models.SourceAIGenerated && post.Timestamp != 0 && post.Timestamp < cutoff {
				cleaned = true
				continue
			}
			if stripUploadedData(post) {
				cleaned = true
			}
			kept = append(kept, post)
		}
		if len(kept) == 0 {
			delete(s.savedItems, category)
		} else {
			s.savedItems[category] = kept
		}
	}
	s.reconcileCategories()
	s.recountLocked()

	if err := s.backend.Remove(ctx, storage.ScratchKeys...); err != nil {
		return cleaned, err
	}

	if cleaned {
		if err := s.backend.Set(ctx, mustEncode(s)); err != nil {
			return cleaned, err
		}
		after, err := s.backend.BytesInUse(ctx)
		if err == nil {
			slog.Info("storage cleanup completed", "before", before, "after", after)
		}
	}
	return cleaned, nil
}

// stripUploadedData drops large inline payloads from posts whose media is
// already durably stored with the publisher.
func stripUploadedData(post *models.Post) bool {
	if post.Source != models.SourceAIGenerated || post.StorageID == "" || post.NeedsUpload {
		return false
	}
	changed := false
	if post.OriginalDataURL != "" {
		post.OriginalDataURL = ""
		changed = true
	}
	if len(post.ImageURL) > 0 && isDataURL(post.ImageURL) {
		post.ImageURL = ""
		changed = true
	}
	if len(post.FileData) > 0 {
		post.FileData = nil
		changed = true
	}
	return changed
}

func isDataURL(u string) bool {
	return len(u) >= 5 && u[:5] == "data:"
}

func mustEncode(s *Store) map[string][]byte {
	entries, err := s.encodeLocked()
	if err != nil {
		// Only reachable with unmarshalable values, which the model types
		// cannot contain.
		panic(err)
	}
	return entries
}
