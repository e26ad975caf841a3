// Package storage provides the key-value backend the post store persists
// into. Every value is an opaque JSON document; mutations replace the whole
// value for a key.
package storage

import "context"

// Well-known keys.
const (
	KeySavedItems       = "savedItems"
	KeyCategories       = "categories"
	KeyCounters         = "counters"
	KeyCustomPresets    = "customPresets"
	KeySavedLinks       = "savedLinks"
	KeyChannelsData     = "channelsData"
	KeyChannelPlatforms = "channelPlatformMappings"
	KeySettings         = "settings"
)

// Scratch keys removed wholesale during cleanup.
var ScratchKeys = []string{"tempData", "cachedImages", "oldLogs"}

type Backend interface {
	// Get returns the stored values for the requested keys. Missing keys are
	// simply absent from the result, not an error.
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)
	// Set writes all entries. A write that would exceed the backend's byte
	// budget fails with an apperr.Quota error and leaves the previous values
	// in place.
	Set(ctx context.Context, entries map[string][]byte) error
	Remove(ctx context.Context, keys ...string) error
	BytesInUse(ctx context.Context) (int64, error)
}
