package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	gonanoid "github.com/matoous/go-nanoid/v2"

	cfg "github.com/postpilotapp/postpilot/configs"
	"github.com/postpilotapp/postpilot/internal/apperr"
)

// MediaService archives original-quality media in object storage and hands
// back a public URL, so the post index only has to keep a pointer instead of
// inline bytes.
type MediaService interface {
	Archive(ctx context.Context, filename string, data []byte) (string, error)
	Enabled() bool
}

type mediaService struct {
	config *cfg.Config
}

func NewMediaService(c *cfg.Config) MediaService {
	return &mediaService{config: c}
}

func (m *mediaService) Enabled() bool {
	r2 := m.config.R2
	return r2.AccountID != "" && r2.AccessKey != "" && r2.SecretKey != "" && r2.BucketName != ""
}

func (m *mediaService) client(ctx context.Context) (*s3.Client, error) {
	c, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(m.config.R2.AccessKey, m.config.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(c, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", m.config.R2.AccountID))
	}), nil
}

// Archive sniffs the content type, rejects anything but the supported image
// and video formats, and uploads under a generated key.
func (m *mediaService) Archive(ctx context.Context, filename string, data []byte) (string, error) {
	if !m.Enabled() {
		return "", apperr.New(apperr.Validation, "media archive is not configured")
	}
	if len(data) == 0 {
		return "", apperr.New(apperr.Validation, "file is empty")
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "", apperr.New(apperr.Validation, "unrecognized file type")
	}
	switch kind.Extension {
	case "jpg", "png", "gif", "webp", "mp4", "mov":
	default:
		return "", apperr.New(apperr.Validation, fmt.Sprintf("unsupported file type %q", kind.Extension))
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("originals/%s.%s", id, kind.Extension)

	client, err := m.client(ctx)
	if err != nil {
		return "", err
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(kind.MIME.Value),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", apperr.Wrap(apperr.Upstream, "media archive upload failed", err)
	}

	slog.Info("archived media", "key", key, "size", len(data), "filename", filename)
	return strings.TrimSuffix(m.config.R2.PublicBase, "/") + "/" + key, nil
}
