// Package transfer holds the request and response shapes exchanged with the
// HTTP layer, with validation tags checked before any work starts.
package transfer

// DispatchRequest is one bulk scheduling run: which posts, which channels,
// and how send times are spread out.
type DispatchRequest struct {
	PostIDs         []string `json:"post_ids" validate:"required,min=1"`
	Channels        []string `json:"channels" validate:"required,min=1"`
	StartTime       string   `json:"start_time" validate:"required"`
	IntervalMinutes int      `json:"interval_minutes" validate:"gt=0"`
	IntervalType    string   `json:"interval_type" validate:"oneof=fixed random optimal"`
	Title           string   `json:"title"`
	Caption         string   `json:"caption"`
	TitleEdited     bool     `json:"title_edited"`
	CaptionEdited   bool     `json:"caption_edited"`
	Album           bool     `json:"album"`
	Draft           bool     `json:"draft"`
	DelaySeconds    int      `json:"delay_seconds" validate:"gte=0"`
}

// PostCreation is a manually added post, typically a desktop upload.
type PostCreation struct {
	Category string `json:"category" validate:"required"`
	Caption  string `json:"caption"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
	FileName string `json:"file_name"`
	FileData []byte `json:"file_data"`
	IsVideo  bool   `json:"is_video"`
}

// OverrideUpdate records or clears a per-post title/caption override.
type OverrideUpdate struct {
	Target string `json:"target" validate:"oneof=title caption"`
	Value  string `json:"value"`
	Clear  bool   `json:"clear"`
}

// RewriteQueueRequest starts a background rewrite run over a selection.
type RewriteQueueRequest struct {
	PostIDs     []string `json:"post_ids" validate:"required,min=1"`
	Target      string   `json:"target" validate:"oneof=title caption"`
	Instruction string   `json:"instruction" validate:"required"`
	UseMedia    bool     `json:"use_media"`
}

// SettingsUpdate carries operator-editable settings. API keys arrive in the
// clear and are encrypted before storage; empty key fields leave the stored
// values untouched.
type SettingsUpdate struct {
	PublisherAPIKey string   `json:"publisher_api_key"`
	RewriteAPIKey   string   `json:"rewrite_api_key"`
	RewriteModel    string   `json:"rewrite_model"`
	DefaultChannels []string `json:"default_channels"`
	DefaultDelay    int      `json:"default_delay" validate:"gte=0"`
	DefaultTimezone string   `json:"default_timezone"`
}
