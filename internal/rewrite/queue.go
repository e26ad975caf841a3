package rewrite

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/postpilotapp/postpilot/internal/apperr"
	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/store"
)

const interItemPause = 500 * time.Millisecond

// Failure records one post that could not be rewritten.
type Failure struct {
	PostID string `json:"post_id"`
	Error  string `json:"error"`
}

// Summary is the outcome of one queue run.
type Summary struct {
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Aborted   bool      `json:"aborted"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Rewriter is the slice of the generation client the queue needs.
type Rewriter interface {
	RewriteText(ctx context.Context, text, instruction string) (string, error)
	RewriteTextWithMedia(ctx context.Context, text, instruction, imageRef string) (string, error)
}

// Queue rewrites a selection of posts one at a time. Only one run may be in
// flight; a second start is rejected instead of queued behind the first.
type Queue struct {
	store  *store.Store
	client Rewriter

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc

	sleep func(context.Context, time.Duration)
}

func NewQueue(st *store.Store, client Rewriter) *Queue {
	return &Queue{
		store:  st,
		client: client,
		sleep: func(ctx context.Context, d time.Duration) {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
			case <-t.C:
			}
		},
	}
}

// Start launches a run in the background. Returns false when a run is
// already in progress.
func (q *Queue) Start(postIDs []string, target, instruction string, useMedia bool, done func(Summary)) bool {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	q.running = true
	q.cancel = cancel
	q.mu.Unlock()

	go func() {
		summary := q.Run(ctx, postIDs, target, instruction, useMedia)

		q.mu.Lock()
		q.running = false
		q.cancel = nil
		q.mu.Unlock()
		cancel()

		if done != nil {
			done(summary)
		}
	}()
	return true
}

// Stop cancels the in-flight run, if any. The current item finishes or fails
// on its own; the queue stops before the next item.
func (q *Queue) Stop() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel == nil {
		return false
	}
	q.cancel()
	return true
}

// Running reports whether a run is in flight.
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Run processes the selection in order. One failing item does not stop the
// run; cancellation is honored between items. Each successful rewrite is
// saved as an override and flushed immediately so partial progress survives.
func (q *Queue) Run(ctx context.Context, postIDs []string, target, instruction string, useMedia bool) Summary {
	summary := Summary{Total: len(postIDs)}

	for i, postID := range postIDs {
		if i > 0 {
			q.sleep(ctx, interItemPause)
		}
		if ctx.Err() != nil {
			summary.Aborted = true
			slog.Info("rewrite run cancelled", "processed", i, "total", len(postIDs))
			break
		}

		post := q.store.ResolvePostByID(postID)
		if post == nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{PostID: postID, Error: "post not found"})
			continue
		}

		text := currentText(post, target)
		if strings.TrimSpace(text) == "" {
			summary.Skipped++
			continue
		}

		ref := mediaRef(post)
		rewritten, err := RewriteWithRetry(ctx, q.sleep, func(ctx context.Context) (string, error) {
			if useMedia && ref != "" {
				return q.client.RewriteTextWithMedia(ctx, text, instruction, ref)
			}
			return q.client.RewriteText(ctx, text, instruction)
		})
		if err != nil {
			if ctx.Err() != nil {
				summary.Aborted = true
				break
			}
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{PostID: postID, Error: err.Error()})
			slog.Info("rewrite failed, continuing", "post", postID, "error", err)
			continue
		}

		if err := q.store.SaveOverride(postID, target, rewritten); err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{PostID: postID, Error: err.Error()})
			continue
		}
		if err := q.store.Flush(ctx); err != nil {
			if apperr.IsQuota(err) {
				summary.Failed++
				summary.Failures = append(summary.Failures, Failure{PostID: postID, Error: err.Error()})
				continue
			}
			slog.Info(err.Error())
		}
		summary.Succeeded++
	}

	return summary
}

// mediaRef picks a reference loadMedia can actually resolve: a data URL or
// a fetchable HTTP URL. Publisher storage ids are not fetchable from here,
// so a post whose only media is an uploaded object is rewritten text-only.
func mediaRef(post *models.Post) string {
	switch {
	case post.OriginalDataURL != "":
		return post.OriginalDataURL
	case post.OriginalURL != "":
		return post.OriginalURL
	default:
		return post.ImageURL
	}
}

// currentText is the rewrite input: the same value dispatch would use, so
// repeated runs refine the visible text rather than the stale original.
func currentText(post *models.Post, target string) string {
	if target == store.TargetTitle {
		if post.TitleOverridden {
			return post.OverriddenTitle
		}
		if post.Title != "" {
			return post.Title
		}
		return post.Caption
	}
	if post.CaptionOverridden {
		return post.OverriddenCaption
	}
	return post.Caption
}
