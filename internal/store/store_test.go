package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/postpilotapp/postpilot/internal/apperr"
	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/storage"
)

func newTestStore(t *testing.T) (*Store, *storage.Memory) {
	t.Helper()
	backend := storage.NewMemory(0)
	return New(backend), backend
}

func TestAddPostAssignsIDAndCategory(t *testing.T) {
	s, _ := newTestStore(t)

	post := &models.Post{Caption: "hello"}
	s.AddPost("news", post)

	if post.ID == "" {
		t.Error("AddPost should assign an id")
	}
	if post.Category != "news" {
		t.Errorf("category = %q, want news", post.Category)
	}
	if post.Timestamp == 0 {
		t.Error("AddPost should stamp creation time")
	}
	if got := s.Categories(); len(got) != 1 || got[0] != "news" {
		t.Errorf("categories = %v, want [news]", got)
	}
}

func TestRemoveLastPostRemovesCategory(t *testing.T) {
	s, _ := newTestStore(t)

	post := &models.Post{Caption: "only one"}
	s.AddPost("solo", post)

	if !s.RemovePost(post.ID) {
		t.Fatal("RemovePost reported miss for existing post")
	}
	if got := s.Categories(); len(got) != 0 {
		t.Errorf("categories = %v, want empty after last post removed", got)
	}
}

func TestRemovePostMissIsNotAnError(t *testing.T) {
	s, _ := newTestStore(t)
	if s.RemovePost("nope") {
		t.Error("RemovePost should report false for unknown id")
	}
}

func TestResolveLegacyCompositeID(t *testing.T) {
	s, _ := newTestStore(t)

	s.AddPost("Facebook", &models.Post{Caption: "zero"})
	s.AddPost("Facebook", &models.Post{Caption: "one"})
	s.AddPost("Facebook", &models.Post{Caption: "two"})

	post := s.ResolvePostByID("Facebook_2")
	if post == nil || post.Caption != "two" {
		t.Fatalf("legacy id resolution failed: %+v", post)
	}

	// Category names containing underscores split at the last one.
	s.AddPost("my_stuff", &models.Post{Caption: "nested"})
	if got := s.ResolvePostByID("my_stuff_0"); got == nil || got.Caption != "nested" {
		t.Errorf("underscore category resolution failed: %+v", got)
	}
}

func TestResolveSkipsPrefixedTokens(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddPost("ai", &models.Post{Caption: "x"})

	if s.ResolvePostByID("ai_0") != nil {
		t.Error("ai_ prefixed token must not be treated as a legacy composite")
	}
	if s.ResolvePostByID("pc_0") != nil {
		t.Error("pc_ prefixed token must not be treated as a legacy composite")
	}
}

func TestLoadMigratesLegacyPosts(t *testing.T) {
	backend := storage.NewMemory(0)

	legacy := map[string][]*models.Post{
		"news": {{Caption: "no id yet"}},
	}
	raw, _ := json.Marshal(legacy)
	if err := backend.Set(context.Background(), map[string][]byte{storage.KeySavedItems: raw}); err != nil {
		t.Fatal(err)
	}

	s := New(backend)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	posts := s.Posts("news")
	if len(posts) != 1 || posts[0].ID == "" {
		t.Fatalf("migration did not assign ids: %+v", posts)
	}

	// The migration must be flushed, so a fresh load sees stable ids.
	s2 := New(backend)
	if err := s2.Load(context.Background()); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if got := s2.Posts("news"); got[0].ID != posts[0].ID {
		t.Errorf("id changed across loads: %q vs %q", got[0].ID, posts[0].ID)
	}
}

func TestSelectionPreservesOrderAndSkipsMisses(t *testing.T) {
	s, _ := newTestStore(t)

	a := &models.Post{Caption: "a"}
	b := &models.Post{Caption: "b"}
	s.AddPost("news", a)
	s.AddPost("news", b)

	posts := s.Selection([]string{b.ID, "missing", a.ID})
	if len(posts) != 2 {
		t.Fatalf("selection = %d posts, want 2", len(posts))
	}
	if posts[0].Caption != "b" || posts[1].Caption != "a" {
		t.Errorf("selection order wrong: %q, %q", posts[0].Caption, posts[1].Caption)
	}
}

func TestAccessorsReturnSnapshots(t *testing.T) {
	s, _ := newTestStore(t)

	post := &models.Post{Caption: "base"}
	s.AddPost("news", post)

	// A snapshot taken before a mutation must not observe it.
	snap := s.Selection([]string{post.ID})[0]
	if err := s.SaveOverride(post.ID, TargetCaption, "edited"); err != nil {
		t.Fatal(err)
	}
	if snap.CaptionOverridden || snap.OverriddenCaption != "" {
		t.Error("snapshot changed by a later override")
	}

	// Scribbling on a snapshot must not leak into the index.
	got := s.ResolvePostByID(post.ID)
	got.Caption = "scribbled"
	if fresh := s.ResolvePostByID(post.ID); fresh.Caption != "base" {
		t.Errorf("index caption = %q, snapshot write leaked in", fresh.Caption)
	}

	s.Posts("news")[0].StorageID = "scribbled"
	if fresh := s.ResolvePostByID(post.ID); fresh.StorageID != "" {
		t.Errorf("index StorageID = %q, snapshot write leaked in", fresh.StorageID)
	}
}

func TestCountersTrackCaptionsAndLinks(t *testing.T) {
	s, _ := newTestStore(t)

	s.AddPost("news", &models.Post{Caption: "text", ImageURL: "https://img/1.jpg"})
	s.AddPost("news", &models.Post{Caption: "   "})
	s.AddPost("news", &models.Post{ImageURL: "https://img/2.jpg"})

	c := s.Counters()
	if c.CaptionCount != 1 {
		t.Errorf("CaptionCount = %d, want 1 (whitespace-only does not count)", c.CaptionCount)
	}
	if c.LinkCount != 2 {
		t.Errorf("LinkCount = %d, want 2", c.LinkCount)
	}
}

func TestSaveOverrideHonorsEmptyValue(t *testing.T) {
	s, _ := newTestStore(t)

	post := &models.Post{Caption: "base", Title: "title"}
	s.AddPost("news", post)

	if err := s.SaveOverride(post.ID, TargetTitle, ""); err != nil {
		t.Fatalf("SaveOverride: %v", err)
	}

	stored := s.ResolvePostByID(post.ID)
	if !stored.TitleOverridden || stored.OverriddenTitle != "" {
		t.Errorf("empty override not recorded: %+v", stored)
	}
	if stored.TitleOverriddenAt == "" {
		t.Error("override timestamp missing")
	}
}

func TestClearOverrideRestoresDefault(t *testing.T) {
	s, _ := newTestStore(t)

	post := &models.Post{Caption: "base"}
	s.AddPost("news", post)

	if err := s.SaveOverride(post.ID, TargetCaption, "edited"); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearOverride(post.ID, TargetCaption); err != nil {
		t.Fatal(err)
	}

	stored := s.ResolvePostByID(post.ID)
	if stored.CaptionOverridden || stored.OverriddenCaption != "" {
		t.Errorf("override not cleared: %+v", stored)
	}
}

func TestSaveOverrideUnknownPost(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.SaveOverride("ghost", TargetTitle, "x")
	if apperr.KindOf(err) != apperr.NotFound {
		t.Errorf("error kind = %v, want NotFound", apperr.KindOf(err))
	}
}

func TestFlushRoundTrip(t *testing.T) {
	backend := storage.NewMemory(0)
	s := New(backend)

	post := &models.Post{Caption: "persisted", ImageURL: "https://img/1.jpg"}
	s.AddPost("news", post)
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	s2 := New(backend)
	if err := s2.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := s2.Posts("news")
	if len(got) != 1 || got[0].Caption != "persisted" || got[0].ID != post.ID {
		t.Errorf("round trip lost data: %+v", got)
	}
	if c := s2.Counters(); c.CaptionCount != 1 || c.LinkCount != 1 {
		t.Errorf("counters not restored: %+v", c)
	}
}

func TestFlushQuotaTriggersOneCleanupAndRetry(t *testing.T) {
	// Small quota; the stale AI post's inline payload pushes the first write
	// over, cleanup strips it, and the retry fits.
	backend := storage.NewMemory(2048)
	s := New(backend)

	old := time.Now().Add(-60 * 24 * time.Hour).UnixMilli()
	s.AddPost("keep", &models.Post{Caption: "small post"})
	s.AddPost("ai", &models.Post{
		Caption:   "stale ai",
		Source:    models.SourceAIGenerated,
		Timestamp: old,
		FileData:  make([]byte, 4096),
	})

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush should succeed after cleanup, got: %v", err)
	}

	if got := s.Posts("ai"); len(got) != 0 {
		t.Errorf("stale AI post survived cleanup: %+v", got)
	}
	if got := s.Posts("keep"); len(got) != 1 {
		t.Errorf("recent post dropped by cleanup: %+v", got)
	}
}

func TestCleanupStripsUploadedAIData(t *testing.T) {
	s, _ := newTestStore(t)

	uploaded := &models.Post{
		Caption:         "uploaded",
		Source:          models.SourceAIGenerated,
		StorageID:       "stored-1",
		OriginalDataURL: "data:image/png;base64,AAAA",
		ImageURL:        "data:image/png;base64,BBBB",
		FileData:        []byte{1, 2, 3},
	}
	pending := &models.Post{
		Caption:     "pending",
		Source:      models.SourceAIGenerated,
		NeedsUpload: true,
		FileData:    []byte{4, 5, 6},
	}
	s.AddPost("ai", uploaded)
	s.AddPost("ai", pending)

	cleaned, err := s.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if !cleaned {
		t.Fatal("Cleanup reported nothing reclaimed")
	}

	got := s.ResolvePostByID(uploaded.ID)
	if got.OriginalDataURL != "" || got.ImageURL != "" || got.FileData != nil {
		t.Errorf("uploaded AI post not stripped: %+v", got)
	}

	gotPending := s.ResolvePostByID(pending.ID)
	if gotPending.FileData == nil {
		t.Error("pending upload must keep its bytes")
	}
}

func TestCleanupRemovesScratchKeys(t *testing.T) {
	backend := storage.NewMemory(0)
	s := New(backend)

	entries := make(map[string][]byte)
	for _, key := range storage.ScratchKeys {
		entries[key] = []byte("junk")
	}
	if err := backend.Set(context.Background(), entries); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Cleanup(context.Background()); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	result, err := backend.Get(context.Background(), storage.ScratchKeys...)
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 0 {
		t.Errorf("scratch keys survived cleanup: %v", result)
	}
}
