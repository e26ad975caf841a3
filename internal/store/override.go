package store

import (
	"time"

	"github.com/postpilotapp/postpilot/internal/apperr"
)

// Override targets.
const (
	TargetTitle   = "title"
	TargetCaption = "caption"
)

// SaveOverride records a user-supplied replacement for the post's title or
// caption. An empty value is a valid override: the flag governs resolution,
// not content length.
func (s *Store) SaveOverride(postID, target, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post := s.resolveLocked(postID)
	if post == nil {
		return apperr.New(apperr.NotFound, "post not found")
	}

	now := time.Now().UTC().Format(time.RFC3339)
	switch target {
	case TargetTitle:
		post.OverriddenTitle = value
		post.TitleOverridden = true
		post.TitleOverriddenAt = now
	case TargetCaption:
		post.OverriddenCaption = value
		post.CaptionOverridden = true
		post.CaptionOverriddenAt = now
	default:
		return apperr.New(apperr.Validation, "override target must be title or caption")
	}
	return nil
}

// ClearOverride reverts resolution to the machine-derived default.
func (s *Store) ClearOverride(postID, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post := s.resolveLocked(postID)
	if post == nil {
		return apperr.New(apperr.NotFound, "post not found")
	}

	switch target {
	case TargetTitle:
		post.OverriddenTitle = ""
		post.TitleOverridden = false
		post.TitleOverriddenAt = ""
	case TargetCaption:
		post.OverriddenCaption = ""
		post.CaptionOverridden = false
		post.CaptionOverriddenAt = ""
	default:
		return apperr.New(apperr.Validation, "override target must be title or caption")
	}
	return nil
}

// SetStorageID back-fills the publisher storage id after a schedule-time
// upload and clears the pending-upload markers.
func (s *Store) SetStorageID(postID, storageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post := s.resolveLocked(postID)
	if post == nil {
		return
	}
	post.StorageID = storageID
	post.NeedsUpload = false
	post.FileData = nil
}
