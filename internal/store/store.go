// Package store owns the category index: the mapping from category name to
// its ordered post list, the flat category list, and the derived counters.
// All persistence is a whole-object write of those three values into the
// key-value backend.
package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/storage"
)

// Store is safe for concurrent use; a single mutex serializes mutation and
// flush so two overlapping bulk operations cannot interleave writes.
// Accessors return snapshot copies, never pointers into the index, so
// callers can read post fields without holding the lock; all writes go
// through id-addressed methods.
type Store struct {
	mu         sync.Mutex
	backend    storage.Backend
	savedItems map[string][]*models.Post
	categories []string
	counters   models.Counters
}

func New(backend storage.Backend) *Store {
	return &Store{
		backend:    backend,
		savedItems: make(map[string][]*models.Post),
	}
}

// Load reads the persisted index and migrates any legacy records that still
// lack a stable identifier. The migration is flushed immediately so the
// composite-id scheme dies out on first load.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.backend.Get(ctx, storage.KeySavedItems, storage.KeyCategories, storage.KeyCounters)
	if err != nil {
		return err
	}

	s.savedItems = make(map[string][]*models.Post)
	if raw, ok := result[storage.KeySavedItems]; ok {
		if err := json.Unmarshal(raw, &s.savedItems); err != nil {
			return err
		}
	}
	s.categories = nil
	if raw, ok := result[storage.KeyCategories]; ok {
		if err := json.Unmarshal(raw, &s.categories); err != nil {
			return err
		}
	}
	if raw, ok := result[storage.KeyCounters]; ok {
		if err := json.Unmarshal(raw, &s.counters); err != nil {
			return err
		}
	}

	s.reconcileCategories()

	if s.migrateLegacyIDs() {
		slog.Info("assigned stable ids to legacy posts")
		return s.flushLocked(ctx)
	}
	return nil
}

// migrateLegacyIDs assigns a generated id to every post that has none.
// Reports whether anything changed.
func (s *Store) migrateLegacyIDs() bool {
	changed := false
	for _, posts := range s.savedItems {
		for _, post := range posts {
			if post.ID == "" {
				post.ID = NewPostID()
				changed = true
			}
		}
	}
	return changed
}

// NewPostID mints a stable post identifier.
func NewPostID() string {
	id, err := gonanoid.New()
	if err != nil {
		// crypto/rand failure; fall back to a timestamp id rather than abort
		return "p_" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return id
}

// AddPost appends the post to its category, creating the category on demand.
// No duplicate detection is performed on the id.
func (s *Store) AddPost(category string, post *models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if post.ID == "" {
		post.ID = NewPostID()
	}
	post.Category = category
	if post.Timestamp == 0 {
		post.Timestamp = time.Now().UnixMilli()
	}

	if _, ok := s.savedItems[category]; !ok {
		s.categories = append(s.categories, category)
	}
	s.savedItems[category] = append(s.savedItems[category], post)
	s.recountLocked()
}

// ResolvePostByID looks up a post given an opaque token from earlier UI
// state. Stable ids are matched across all categories; tokens shaped like
// the legacy "<category>_<index>" composite (contains an underscore, not an
// "ai_"/"pc_" prefix) are resolved by direct indexing. Returns nil when not
// found under either scheme. This is a compatibility shim: the legacy shape
// is rewritten on load and should not appear in new data.
func (s *Store) ResolvePostByID(postID string) *models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePost(s.resolveLocked(postID))
}

// clonePost snapshots a post for use outside the lock. Nobody mutates slice
// contents in place, so a shallow copy is sufficient.
func clonePost(post *models.Post) *models.Post {
	if post == nil {
		return nil
	}
	cp := *post
	return &cp
}

func (s *Store) resolveLocked(postID string) *models.Post {
	for _, posts := range s.savedItems {
		for _, post := range posts {
			if post.ID == postID {
				return post
			}
		}
	}

	if category, index, ok := splitLegacyID(postID); ok {
		posts := s.savedItems[category]
		if index >= 0 && index < len(posts) {
			return posts[index]
		}
	}
	return nil
}

func splitLegacyID(postID string) (category string, index int, ok bool) {
	if !strings.Contains(postID, "_") ||
		strings.HasPrefix(postID, "ai_") ||
		strings.HasPrefix(postID, "pc_") {
		return "", 0, false
	}
	cut := strings.LastIndex(postID, "_")
	index, err := strconv.Atoi(postID[cut+1:])
	if err != nil {
		return "", 0, false
	}
	return postID[:cut], index, true
}

// RemovePost deletes the post addressed by postID. When its category list
// becomes empty the category entry is deleted too. Reports whether a post
// was removed; a miss is not an error.
func (s *Store) RemovePost(postID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for category, posts := range s.savedItems {
		for i, post := range posts {
			if post.ID == postID {
				s.removeAtLocked(category, i)
				return true
			}
		}
	}

	if category, index, ok := splitLegacyID(postID); ok {
		if posts := s.savedItems[category]; index >= 0 && index < len(posts) {
			s.removeAtLocked(category, index)
			return true
		}
	}
	return false
}

func (s *Store) removeAtLocked(category string, index int) {
	posts := s.savedItems[category]
	s.savedItems[category] = append(posts[:index], posts[index+1:]...)
	if len(s.savedItems[category]) == 0 {
		delete(s.savedItems, category)
	}
	s.reconcileCategories()
	s.recountLocked()
}

// ClearCategory drops an entire category after a fully successful bulk
// schedule.
func (s *Store) ClearCategory(category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.savedItems, category)
	s.reconcileCategories()
	s.recountLocked()
}

// reconcileCategories keeps the flat name list consistent with the index:
// drops names whose category vanished, adds names that exist only in the
// index, preserving prior order for survivors.
func (s *Store) reconcileCategories() {
	seen := make(map[string]bool, len(s.categories))
	kept := s.categories[:0]
	for _, name := range s.categories {
		if _, ok := s.savedItems[name]; ok && !seen[name] {
			kept = append(kept, name)
			seen[name] = true
		}
	}
	var missing []string
	for name := range s.savedItems {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	s.categories = append(kept, missing...)
}

func (s *Store) recountLocked() {
	var counters models.Counters
	for _, posts := range s.savedItems {
		for _, post := range posts {
			if strings.TrimSpace(post.Caption) != "" {
				counters.CaptionCount++
			}
			if post.ImageURL != "" {
				counters.LinkCount++
			}
		}
	}
	s.counters = counters
}

// Categories returns the category names in index order.
func (s *Store) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.categories))
	copy(out, s.categories)
	return out
}

// Posts returns snapshots of one category's ordered posts, or of every post
// across all categories (category order, then insertion order) when category
// is "all" or empty.
func (s *Store) Posts(category string) []*models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category != "" && category != "all" {
		return clonePosts(s.savedItems[category])
	}
	var all []*models.Post
	for _, name := range s.categories {
		all = append(all, clonePosts(s.savedItems[name])...)
	}
	return all
}

func clonePosts(posts []*models.Post) []*models.Post {
	out := make([]*models.Post, len(posts))
	for i, post := range posts {
		out[i] = clonePost(post)
	}
	return out
}

// Selection materializes a selection set as an ordered slice of snapshots.
// Tokens that resolve to nothing are skipped; the caller surfaces the miss.
func (s *Store) Selection(postIDs []string) []*models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts := make([]*models.Post, 0, len(postIDs))
	for _, id := range postIDs {
		if post := s.resolveLocked(id); post != nil {
			posts = append(posts, clonePost(post))
		}
	}
	return posts
}

// Counters returns the current derived counters.
func (s *Store) Counters() models.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}
