package dispatch

import (
	"strings"

	"github.com/postpilotapp/postpilot/internal/models"
)

// BatchEditIntent captures whether the operator deliberately edited the
// shared title/caption fields for this batch. A nil field means "per post":
// each post resolves from its own overrides and defaults. A non-nil field is
// applied uniformly to every post in the batch, but only when it is
// non-empty after trimming; a blank shared field never clobbers per-post
// values.
type BatchEditIntent struct {
	UniformTitle   *string
	UniformCaption *string
}

// IntentFromForm builds the intent from the shared form values and the
// edit-tracking flags reported by the client.
func IntentFromForm(title, caption string, titleEdited, captionEdited bool) BatchEditIntent {
	var intent BatchEditIntent
	if titleEdited {
		intent.UniformTitle = &title
	}
	if captionEdited {
		intent.UniformCaption = &caption
	}
	return intent
}

// ResolveTitle computes the effective title for one post.
//
// Priority: uniform batch edit (non-empty after trim) > persisted override
// (flag governs, an overridden empty string is honored) > the post's own
// title > caption. Title has no independent default; it degrades to the
// caption text.
func ResolveTitle(post *models.Post, intent BatchEditIntent) string {
	if intent.UniformTitle != nil {
		if trimmed := strings.TrimSpace(*intent.UniformTitle); trimmed != "" {
			return trimmed
		}
	}
	if post.TitleOverridden {
		return post.OverriddenTitle
	}
	if post.Title != "" {
		return post.Title
	}
	return post.Caption
}

// ResolveCaption computes the effective caption for one post. Same shape as
// ResolveTitle with no secondary fallback beyond the post's caption.
func ResolveCaption(post *models.Post, intent BatchEditIntent) string {
	if intent.UniformCaption != nil {
		if trimmed := strings.TrimSpace(*intent.UniformCaption); trimmed != "" {
			return trimmed
		}
	}
	if post.CaptionOverridden {
		return post.OverriddenCaption
	}
	return post.Caption
}
