package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/storage"
)

// ChannelLister is the slice of the publishing client the channel cache
// needs.
type ChannelLister interface {
	Channels(ctx context.Context) ([]*models.Channel, error)
}

type ChannelService interface {
	Channels(ctx context.Context, refresh bool) ([]*models.Channel, error)
	PlatformMappings(ctx context.Context) (map[string]string, error)
}

// channelService caches the publisher's channel list in the backend so the
// UI can render selections without a round trip, refreshing on demand.
type channelService struct {
	backend storage.Backend
	lister  ChannelLister
}

func NewChannelService(backend storage.Backend, lister ChannelLister) ChannelService {
	return &channelService{backend: backend, lister: lister}
}

func (s *channelService) Channels(ctx context.Context, refresh bool) ([]*models.Channel, error) {
	if !refresh {
		if cached, err := s.cached(ctx); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	channels, err := s.lister.Channels(ctx)
	if err != nil {
		// Degrade to the cache when the publisher is unreachable.
		if cached, cacheErr := s.cached(ctx); cacheErr == nil && len(cached) > 0 {
			slog.Info("channel refresh failed, serving cache", "error", err)
			return cached, nil
		}
		return nil, err
	}

	if err := s.cache(ctx, channels); err != nil {
		slog.Info(err.Error())
	}
	return channels, nil
}

// PlatformMappings returns channel id to platform name, derived from the
// cached channel list.
func (s *channelService) PlatformMappings(ctx context.Context) (map[string]string, error) {
	result, err := s.backend.Get(ctx, storage.KeyChannelPlatforms)
	if err != nil {
		return nil, err
	}

	mappings := make(map[string]string)
	if raw, ok := result[storage.KeyChannelPlatforms]; ok {
		if err := json.Unmarshal(raw, &mappings); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
	}
	return mappings, nil
}

func (s *channelService) cached(ctx context.Context) ([]*models.Channel, error) {
	result, err := s.backend.Get(ctx, storage.KeyChannelsData)
	if err != nil {
		return nil, err
	}

	var channels []*models.Channel
	if raw, ok := result[storage.KeyChannelsData]; ok {
		if err := json.Unmarshal(raw, &channels); err != nil {
			return nil, err
		}
	}
	return channels, nil
}

func (s *channelService) cache(ctx context.Context, channels []*models.Channel) error {
	raw, err := json.Marshal(channels)
	if err != nil {
		return err
	}

	mappings := make(map[string]string, len(channels))
	for _, ch := range channels {
		mappings[ch.ID] = ch.Platform
	}
	rawMappings, err := json.Marshal(mappings)
	if err != nil {
		return err
	}

	return s.backend.Set(ctx, map[string][]byte{
		storage.KeyChannelsData:     raw,
		storage.KeyChannelPlatforms: rawMappings,
	})
}
