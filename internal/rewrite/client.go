// Package rewrite is the client for the text-generation API and the
// background queue that rewrites saved captions and titles with it.
package rewrite

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/h2non/filetype"

	"github.com/postpilotapp/postpilot/internal/apperr"
)

const (
	minRequestInterval = time.Second
	maxRequestAttempts = 3
	maxInlineMediaSize = 4 * 1024 * 1024
)

// Client calls the generation API. Multiple API keys rotate round-robin so
// one exhausted key does not stall the whole queue; calls are paced at least
// one second apart.
type Client struct {
	baseURL string
	model   string
	keys    []string
	httpc   *http.Client

	mu       sync.Mutex
	keyIndex int
	lastCall time.Time

	sleep func(time.Duration)
}

// NewClient accepts a comma-separated key list as configured.
func NewClient(baseURL, model, apiKeys string) *Client {
	var keys []string
	for _, k := range strings.Split(apiKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		keys:    keys,
		httpc:   &http.Client{Timeout: 60 * time.Second},
		sleep:   time.Sleep,
	}
}

func (c *Client) nextKey() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.keys) == 0 {
		return "", apperr.New(apperr.Validation, "no rewrite API key configured")
	}
	key := c.keys[c.keyIndex%len(c.keys)]
	c.keyIndex++
	return key, nil
}

func (c *Client) throttle() {
	c.mu.Lock()
	wait := minRequestInterval - time.Since(c.lastCall)
	c.lastCall = time.Now()
	c.mu.Unlock()
	if wait > 0 {
		c.sleep(wait)
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// RewriteText rewrites text per the instruction and returns the replacement.
func (c *Client) RewriteText(ctx context.Context, text, instruction string) (string, error) {
	prompt := fmt.Sprintf("%s\n\nText to rewrite:\n%s\n\nRespond with the rewritten text only, no preamble.", instruction, text)
	return c.generate(ctx, []part{{Text: prompt}})
}

// RewriteTextWithMedia rewrites text with the post's image supplied as
// context. imageRef is either a data URL or a fetchable HTTP URL; when the
// media cannot be obtained the rewrite proceeds text-only.
func (c *Client) RewriteTextWithMedia(ctx context.Context, text, instruction, imageRef string) (string, error) {
	data, mime, err := c.loadMedia(ctx, imageRef)
	if err != nil {
		slog.Info("media unavailable for rewrite, continuing text-only", "error", err)
		return c.RewriteText(ctx, text, instruction)
	}

	prompt := fmt.Sprintf("%s\n\nText to rewrite:\n%s\n\nRespond with the rewritten text only, no preamble.", instruction, text)
	return c.generate(ctx, []part{
		{InlineData: &inlineData{MimeType: mime, Data: base64.StdEncoding.EncodeToString(data)}},
		{Text: prompt},
	})
}

func (c *Client) loadMedia(ctx context.Context, imageRef string) ([]byte, string, error) {
	if strings.HasPrefix(imageRef, "data:") {
		return decodeDataURL(imageRef)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageRef, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetching media: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxInlineMediaSize+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxInlineMediaSize {
		return nil, "", fmt.Errorf("media exceeds %d bytes", maxInlineMediaSize)
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return nil, "", fmt.Errorf("unrecognized media type")
	}
	return data, kind.MIME.Value, nil
}

func decodeDataURL(u string) ([]byte, string, error) {
	rest := strings.TrimPrefix(u, "data:")
	comma := strings.Index(rest, ",")
	if comma < 0 {
		return nil, "", fmt.Errorf("malformed data URL")
	}
	meta, payload := rest[:comma], rest[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", fmt.Errorf("data URL is not base64 encoded")
	}
	mime := strings.TrimSuffix(meta, ";base64")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxInlineMediaSize {
		return nil, "", fmt.Errorf("media exceeds %d bytes", maxInlineMediaSize)
	}
	return data, mime, nil
}

func (c *Client) generate(ctx context.Context, parts []part) (string, error) {
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: parts}}})
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 1; attempt <= maxRequestAttempts; attempt++ {
		c.throttle()

		key, err := c.nextKey()
		if err != nil {
			return "", err
		}

		text, err := c.doGenerate(ctx, key, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil || apperr.KindOf(err) == apperr.Validation {
			return "", err
		}
		slog.Info("rewrite request failed", "attempt", attempt, "error", err)
	}
	return "", lastErr
}

func (c *Client) doGenerate(ctx context.Context, key string, body []byte) (string, error) {
	u := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.Upstream, "unable to reach rewrite API", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", apperr.New(apperr.RateLimit, "rewrite API rate limit exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", apperr.New(apperr.Upstream, fmt.Sprintf("rewrite API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", apperr.Wrap(apperr.Upstream, "invalid rewrite response", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", apperr.New(apperr.Upstream, "rewrite response contained no text")
	}

	text := strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", apperr.New(apperr.Upstream, "rewrite response contained no text")
	}
	return text, nil
}
