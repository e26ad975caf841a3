// Package publisher is the client for the external post-publishing API:
// media upload in exchange for a storage id, and scheduled-post creation.
package publisher

import "time"

// PostOptions describes one outbound scheduled post. Exactly one media
// source is consulted, in priority order StorageID > ImageURL; text-only
// posts carry no media at all.
type PostOptions struct {
	StorageID  string
	ImageURL   string
	Caption    string
	Title      string
	ChannelIDs []string
	ScheduleAt time.Time
	IsTextOnly bool
	IsVideo    bool
	Draft      bool
}

// AlbumOptions schedules one multi-image post. Each URL is uploaded first;
// uploads are paced to avoid tripping the API's rate limit.
type AlbumOptions struct {
	ImageURLs  []string
	Caption    string
	Title      string
	ChannelIDs []string
	ScheduleAt time.Time
	Draft      bool
}

// Confirmation is the publisher's acknowledgment of a scheduled post.
type Confirmation struct {
	PostID      string
	ScheduledAt string
	ImageCount  int
}

const maxUploadBytes = 50 * 1024 * 1024

// scheduledPostRequest is the JSON body of a scheduled-post creation call.
type scheduledPostRequest struct {
	Text            string           `json:"text"`
	ChannelIDs      []string         `json:"channel_ids"`
	ScheduleAt      string           `json:"schedule_at"`
	ImageObjectIDs  []string         `json:"image_object_ids,omitempty"`
	VideoObjectIDs  []string         `json:"video_object_ids,omitempty"`
	IsDraft         bool             `json:"is_draft"`
	YoutubeSettings *youtubeSettings `json:"youtube_settings,omitempty"`
}

type youtubeSettings struct {
	VideoTitle         string `json:"videoTitle"`
	VideoDescription   string `json:"videoDescription"`
	VideoPrivacyStatus string `json:"videoPrivacyStatus"`
	VideoType          string `json:"videoType"`
}

type scheduledPostResponse struct {
	ScheduledPosts []struct {
		ID         string `json:"id"`
		ScheduleAt string `json:"schedule_at"`
	} `json:"scheduled_posts"`
}

type uploadResponse struct {
	StorageObjectID string `json:"storage_object_id"`
}

type errorResponse struct {
	Msg     string `json:"msg"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
	Error   string `json:"error"`
}

func (e *errorResponse) text() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Message != "":
		return e.Message
	case e.Detail != "":
		return e.Detail
	default:
		return e.Error
	}
}
