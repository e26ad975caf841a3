package models

// Post sources.
const (
	SourceCapture     = "capture"
	SourceAIGenerated = "ai_generated"
	SourcePCUpload    = "pc_upload"
	SourceCSVImport   = "csv_import"
)

// Post is one schedulable content unit: an image, a video, or plain text.
// Caption and Title hold the values derived at capture/import time; the
// Overridden* fields layer user edits on top and are only honored when the
// matching *Overridden flag is set.
type Post struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Caption  string `json:"caption"`
	Title    string `json:"title,omitempty"`

	OverriddenTitle   string `json:"overriddenTitle,omitempty"`
	TitleOverridden   bool   `json:"titleOverridden,omitempty"`
	TitleOverriddenAt string `json:"titleOverriddenAt,omitempty"`

	OverriddenCaption   string `json:"overriddenCaption,omitempty"`
	CaptionOverridden   bool   `json:"captionOverridden,omitempty"`
	CaptionOverriddenAt string `json:"captionOverriddenAt,omitempty"`

	// ImageURL is the displayable preview; OriginalDataURL/OriginalURL and
	// StorageID point at higher-fidelity sources used preferentially at
	// schedule time (StorageID wins, then OriginalURL, then ImageURL).
	ImageURL        string `json:"imageUrl,omitempty"`
	OriginalDataURL string `json:"originalDataUrl,omitempty"`
	OriginalURL     string `json:"originalUrl,omitempty"`
	StorageID       string `json:"storageId,omitempty"`

	IsTextOnly bool `json:"isTextOnly,omitempty"`
	IsVideo    bool `json:"isVideo,omitempty"`

	// NeedsUpload marks content not yet durably stored with the publisher;
	// FileData carries the raw bytes until the schedule-time upload.
	NeedsUpload bool   `json:"needsUpload,omitempty"`
	FileData    []byte `json:"fileData,omitempty"`
	FileName    string `json:"fileName,omitempty"`

	Source    string `json:"source,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Counters is maintained alongside the index for badge display. It is not
// load-bearing for scheduling correctness.
type Counters struct {
	CaptionCount int `json:"captionCount"`
	LinkCount    int `json:"linkCount"`
}
