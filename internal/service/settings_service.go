package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	cfg "github.com/postpilotapp/postpilot/configs"
	"github.com/postpilotapp/postpilot/internal/apperr"
	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/storage"
	"github.com/postpilotapp/postpilot/internal/transfer"
	"github.com/postpilotapp/postpilot/pkg/utils"
)

type SettingsService interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	UpdateSettings(ctx context.Context, req transfer.SettingsUpdate) (*models.Settings, error)
	PublisherAPIKey(ctx context.Context) (string, error)
	ListPresets(ctx context.Context) ([]*models.Preset, error)
	SavePreset(ctx context.Context, preset *models.Preset) error
	DeletePreset(ctx context.Context, name string) error
}

type settingsService struct {
	backend  storage.Backend
	config   *cfg.Config
	validate *validator.Validate
}

func NewSettingsService(backend storage.Backend, c *cfg.Config) SettingsService {
	return &settingsService{
		backend:  backend,
		config:   c,
		validate: validator.New(),
	}
}

func (s *settingsService) GetSettings(ctx context.Context) (*models.Settings, error) {
	result, err := s.backend.Get(ctx, storage.KeySettings)
	if err != nil {
		return nil, err
	}

	settings := &models.Settings{}
	if raw, ok := result[storage.KeySettings]; ok {
		if err := json.Unmarshal(raw, settings); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
	}
	return settings, nil
}

// UpdateSettings merges the request into the stored settings. Submitted API
// keys are encrypted with the server secret before they touch the backend.
func (s *settingsService) UpdateSettings(ctx context.Context, req transfer.SettingsUpdate) (*models.Settings, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Wrap(apperr.Validation, "invalid settings", err)
	}

	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	if req.DefaultChannels != nil {
		settings.DefaultChannels = req.DefaultChannels
	}
	if req.DefaultDelay > 0 {
		settings.DefaultDelay = req.DefaultDelay
	}
	if req.DefaultTimezone != "" {
		settings.DefaultTimezone = req.DefaultTimezone
	}
	if req.RewriteModel != "" {
		settings.RewriteModel = req.RewriteModel
	}

	if req.PublisherAPIKey != "" {
		enc, err := utils.Encrypt([]byte(req.PublisherAPIKey), []byte(s.config.SecretKey))
		if err != nil {
			return nil, err
		}
		settings.PublisherAPIKeyEnc = enc
	}
	if req.RewriteAPIKey != "" {
		enc, err := utils.Encrypt([]byte(req.RewriteAPIKey), []byte(s.config.SecretKey))
		if err != nil {
			return nil, err
		}
		settings.RewriteAPIKeyEnc = enc
	}

	if err := s.saveSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// PublisherAPIKey returns the stored key in the clear, falling back to the
// environment-configured key when none has been saved.
func (s *settingsService) PublisherAPIKey(ctx context.Context) (string, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return "", err
	}
	if settings.PublisherAPIKeyEnc == "" {
		return s.config.PublisherAPIKey, nil
	}
	return utils.Decrypt(settings.PublisherAPIKeyEnc, []byte(s.config.SecretKey))
}

func (s *settingsService) saveSettings(ctx context.Context, settings *models.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, map[string][]byte{storage.KeySettings: raw})
}

func (s *settingsService) ListPresets(ctx context.Context) ([]*models.Preset, error) {
	result, err := s.backend.Get(ctx, storage.KeyCustomPresets)
	if err != nil {
		return nil, err
	}

	var presets []*models.Preset
	if raw, ok := result[storage.KeyCustomPresets]; ok {
		if err := json.Unmarshal(raw, &presets); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
	}
	return presets, nil
}

// SavePreset inserts or replaces by name.
func (s *settingsService) SavePreset(ctx context.Context, preset *models.Preset) error {
	if strings.TrimSpace(preset.Name) == "" {
		return apperr.New(apperr.Validation, "preset name is required")
	}

	presets, err := s.ListPresets(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i, p := range presets {
		if p.Name == preset.Name {
			presets[i] = preset
			replaced = true
			break
		}
	}
	if !replaced {
		presets = append(presets, preset)
	}
	return s.savePresets(ctx, presets)
}

func (s *settingsService) DeletePreset(ctx context.Context, name string) error {
	presets, err := s.ListPresets(ctx)
	if err != nil {
		return err
	}

	kept := presets[:0]
	for _, p := range presets {
		if p.Name != name {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(presets) {
		return apperr.New(apperr.NotFound, "preset not found")
	}
	return s.savePresets(ctx, kept)
}

func (s *settingsService) savePresets(ctx context.Context, presets []*models.Preset) error {
	raw, err := json.Marshal(presets)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, map[string][]byte{storage.KeyCustomPresets: raw})
}
