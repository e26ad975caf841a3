package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/postpilotapp/postpilot/internal/apperr"
	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/publisher"
	"github.com/postpilotapp/postpilot/internal/storage"
	"github.com/postpilotapp/postpilot/internal/store"
	"github.com/postpilotapp/postpilot/internal/transfer"
)

type fakePublisher struct {
	scheduled  []publisher.PostOptions
	albums     []publisher.AlbumOptions
	uploads    []string
	uploadErr  error
	failAtPost int // 1-based index of the SchedulePost call that fails, 0 = never
	scheduleN  int
}

func (f *fakePublisher) UploadMedia(ctx context.Context, filename string, data []byte) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploads = append(f.uploads, filename)
	return "obj-" + filename, nil
}

func (f *fakePublisher) SchedulePost(ctx context.Context, opts publisher.PostOptions) (*publisher.Confirmation, error) {
	f.scheduleN++
	if f.failAtPost != 0 && f.scheduleN == f.failAtPost {
		return nil, apperr.New(apperr.Upstream, "publishing API error (500)")
	}
	f.scheduled = append(f.scheduled, opts)
	return &publisher.Confirmation{PostID: "remote"}, nil
}

func (f *fakePublisher) ScheduleAlbum(ctx context.Context, opts publisher.AlbumOptions) (*publisher.Confirmation, error) {
	f.albums = append(f.albums, opts)
	return &publisher.Confirmation{PostID: "remote-album"}, nil
}

func (f *fakePublisher) StoredObjectURL(storageID string) string {
	return "https://pub.example/stored/" + storageID
}

func newTestDispatcher(t *testing.T, pub Publisher) (*Dispatcher, *store.Store) {
	t.Helper()
	st := store.New(storage.NewMemory(0))
	d := NewDispatcher(st, pub)
	d.sleep = func(context.Context, time.Duration) {}
	d.randFloat = func() float64 { return 0 }
	d.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return d, st
}

func baseRequest(ids []string) transfer.DispatchRequest {
	return transfer.DispatchRequest{
		PostIDs:         ids,
		Channels:        []string{"ch-1"},
		StartTime:       "2026-03-10T14:00:00Z",
		IntervalMinutes: 30,
		IntervalType:    IntervalFixed,
	}
}

func addPost(st *store.Store, category string, post *models.Post) string {
	st.AddPost(category, post)
	return post.ID
}

func TestRunSchedulesInSelectionOrder(t *testing.T) {
	pub := &fakePublisher{}
	d, st := newTestDispatcher(t, pub)

	id1 := addPost(st, "news", &models.Post{Caption: "first", ImageURL: "https://img/1.jpg"})
	id2 := addPost(st, "news", &models.Post{Caption: "second", ImageURL: "https://img/2.jpg"})

	result, err := d.Run(context.Background(), baseRequest([]string{id2, id1}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Succeeded != 2 || result.Aborted {
		t.Fatalf("got succeeded=%d aborted=%v, want 2/false", result.Succeeded, result.Aborted)
	}

	if pub.scheduled[0].Caption != "second" || pub.scheduled[1].Caption != "first" {
		t.Errorf("selection order not preserved: %q then %q",
			pub.scheduled[0].Caption, pub.scheduled[1].Caption)
	}

	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	if !pub.scheduled[0].ScheduleAt.Equal(start) {
		t.Errorf("first send time = %v, want %v", pub.scheduled[0].ScheduleAt, start)
	}
	if want := start.Add(30 * time.Minute); !pub.scheduled[1].ScheduleAt.Equal(want) {
		t.Errorf("second send time = %v, want %v", pub.scheduled[1].ScheduleAt, want)
	}
}

func TestRunAbortsOnFirstFailure(t *testing.T) {
	pub := &fakePublisher{failAtPost: 2}
	d, st := newTestDispatcher(t, pub)

	ids := []string{
		addPost(st, "news", &models.Post{Caption: "a", ImageURL: "https://img/a.jpg"}),
		addPost(st, "news", &models.Post{Caption: "b", ImageURL: "https://img/b.jpg"}),
		addPost(st, "news", &models.Post{Caption: "c", ImageURL: "https://img/c.jpg"}),
	}

	result, err := d.Run(context.Background(), baseRequest(ids))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !result.Aborted {
		t.Error("expected run to abort")
	}
	if result.Succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", result.Succeeded)
	}
	if len(pub.scheduled) != 1 {
		t.Errorf("posts scheduled after failure: %d, want 1", len(pub.scheduled))
	}
	if len(result.Results) != 2 {
		t.Errorf("results = %d, want 2 (success plus failure)", len(result.Results))
	}
	if result.Results[1].Error == "" {
		t.Error("failing result should carry the error")
	}
}

func TestRunStorageIDWinsOverURLs(t *testing.T) {
	pub := &fakePublisher{}
	d, st := newTestDispatcher(t, pub)

	id := addPost(st, "news", &models.Post{
		Caption:     "stored",
		StorageID:   "stored-123",
		OriginalURL: "https://orig/full.jpg",
		ImageURL:    "https://img/preview.jpg",
	})

	if _, err := d.Run(context.Background(), baseRequest([]string{id})); err != nil {
		t.Fatalf("Run: %v", err)
	}

	opts := pub.scheduled[0]
	if opts.StorageID != "stored-123" {
		t.Errorf("StorageID = %q, want stored-123", opts.StorageID)
	}
	if opts.ImageURL != "" {
		t.Errorf("ImageURL = %q, want empty when storage id is set", opts.ImageURL)
	}
}

func TestRunOriginalURLBeatsPreview(t *testing.T) {
	pub := &fakePublisher{}
	d, st := newTestDispatcher(t, pub)

	id := addPost(st, "news", &models.Post{
		Caption:     "orig",
		OriginalURL: "https://orig/full.jpg",
		ImageURL:    "https://img/preview.jpg",
	})

	if _, err := d.Run(context.Background(), baseRequest([]string{id})); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := pub.scheduled[0].ImageURL; got != "https://orig/full.jpg" {
		t.Errorf("ImageURL = %q, want original", got)
	}
}

func TestRunUploadsPendingMediaAndBackfills(t *testing.T) {
	pub := &fakePublisher{}
	d, st := newTestDispatcher(t, pub)

	id := addPost(st, "news", &models.Post{
		Caption:     "upload me",
		NeedsUpload: true,
		FileData:    []byte{1, 2, 3},
		FileName:    "shot.png",
	})

	if _, err := d.Run(context.Background(), baseRequest([]string{id})); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if pub.scheduled[0].StorageID != "obj-shot.png" {
		t.Errorf("StorageID = %q, want upload result", pub.scheduled[0].StorageID)
	}

	stored := st.ResolvePostByID(id)
	if stored.NeedsUpload || stored.FileData != nil {
		t.Error("upload markers not cleared after back-fill")
	}
	if stored.StorageID != "obj-shot.png" {
		t.Errorf("stored StorageID = %q", stored.StorageID)
	}
}

func TestRunUploadQuotaFallsBackToImageURL(t *testing.T) {
	pub := &fakePublisher{uploadErr: apperr.New(apperr.Quota, "storage quota exceeded")}
	d, st := newTestDispatcher(t, pub)

	id := addPost(st, "news", &models.Post{
		Caption:     "fallback",
		NeedsUpload: true,
		FileData:    []byte{1},
		ImageURL:    "https://img/preview.jpg",
	})

	result, err := d.Run(context.Background(), baseRequest([]string{id}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Succeeded != 1 {
		t.Fatalf("succeeded = %d, want 1", result.Succeeded)
	}
	if got := pub.scheduled[0].ImageURL; got != "https://img/preview.jpg" {
		t.Errorf("ImageURL = %q, want preview fallback", got)
	}
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakePublisher{})

	req := baseRequest([]string{"x"})
	req.Channels = nil

	_, err := d.Run(context.Background(), req)
	if apperr.KindOf(err) != apperr.Validation {
		t.Errorf("error kind = %v, want Validation", apperr.KindOf(err))
	}
}

func TestValidateRequest(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakePublisher{})

	if err := d.ValidateRequest(baseRequest([]string{"x"})); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	bad := baseRequest([]string{"x"})
	bad.StartTime = "tomorrow at noon"
	if err := d.ValidateRequest(bad); apperr.KindOf(err) != apperr.Validation {
		t.Errorf("bad start time: kind = %v, want Validation", apperr.KindOf(err))
	}

	bad = baseRequest(nil)
	if err := d.ValidateRequest(bad); apperr.KindOf(err) != apperr.Validation {
		t.Errorf("empty selection: kind = %v, want Validation", apperr.KindOf(err))
	}

	bad = baseRequest([]string{"x"})
	bad.IntervalType = "sometimes"
	if err := d.ValidateRequest(bad); apperr.KindOf(err) != apperr.Validation {
		t.Errorf("unknown interval type: kind = %v, want Validation", apperr.KindOf(err))
	}
}

func TestRunAlbumCollapsesSelection(t *testing.T) {
	pub := &fakePublisher{}
	d, st := newTestDispatcher(t, pub)

	ids := []string{
		addPost(st, "news", &models.Post{Caption: "cover", ImageURL: "https://img/a.jpg"}),
		addPost(st, "news", &models.Post{Caption: "b", StorageID: "stored-9"}),
	}

	req := baseRequest(ids)
	req.Album = true

	result, err := d.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Succeeded != 2 {
		t.Errorf("succeeded = %d, want 2", result.Succeeded)
	}
	if len(pub.albums) != 1 {
		t.Fatalf("albums = %d, want 1", len(pub.albums))
	}

	album := pub.albums[0]
	if album.Caption != "cover" {
		t.Errorf("album caption = %q, want first post's", album.Caption)
	}
	if len(album.ImageURLs) != 2 {
		t.Fatalf("album images = %d, want 2", len(album.ImageURLs))
	}
	if album.ImageURLs[1] != "https://pub.example/stored/stored-9" {
		t.Errorf("stored post should resolve to download URL, got %q", album.ImageURLs[1])
	}
}
