package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	weberrors "github.com/Aman-CERP/webkb/internal/errors"
)

const (
	// DefaultChannelMax is N_channel_max: the default bound on how many
	// videos a channel expansion enumerates.
	DefaultChannelMax = 50

	// DefaultChannelFullMax is N_channel_full: the opt-in bound.
	DefaultChannelFullMax = 500
)

// TranscriptSegment is one timestamped line of a video transcript.
type TranscriptSegment struct {
	StartSeconds float64 `json:"start_seconds"`
	Text         string  `json:"text"`
}

// transcriptResponse is the shape returned by the configured transcript
// service for a single video.
type transcriptResponse struct {
	Title      string              `json:"title"`
	Language   string              `json:"language"`
	Duration   float64             `json:"duration_seconds"`
	ChannelID  string              `json:"channel_id"`
	Channel    string              `json:"channel_title"`
	Segments   []TranscriptSegment `json:"segments"`
	HasTranscript bool             `json:"has_transcript"`
}

// channelResponse is the shape returned when enumerating a channel's videos.
type channelResponse struct {
	ChannelTitle string   `json:"channel_title"`
	VideoURLs    []string `json:"video_urls"`
}

// VideoFetcherConfig configures the transcript-service client.
type VideoFetcherConfig struct {
	BaseURL string // e.g. http://localhost:8090, exposing /transcript?url=
	Timeout time.Duration
}

// DefaultVideoFetcherConfig returns sane client defaults.
func DefaultVideoFetcherConfig() VideoFetcherConfig {
	return VideoFetcherConfig{
		BaseURL: "http://localhost:8090",
		Timeout: 30 * time.Second,
	}
}

// VideoFetcher pulls transcript and metadata from a transcript service.
// Videos are immutable: the Refresher never re-fetches them (spec §4.10).
type VideoFetcher struct {
	client *http.Client
	cfg    VideoFetcherConfig
}

// NewVideoFetcher builds a VideoFetcher against cfg.BaseURL.
func NewVideoFetcher(cfg VideoFetcherConfig) *VideoFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultVideoFetcherConfig().Timeout
	}
	return &VideoFetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
	}
}

// Fetch retrieves the transcript for a video URL and flattens it to a
// single text document, joining consecutive segments with newlines.
func (f *VideoFetcher) Fetch(ctx context.Context, rawURL string) (*FetchedDocument, error) {
	endpoint := f.cfg.BaseURL + "/transcript?url=" + url.QueryEscape(rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, weberrors.Permanent("failed to build transcript request", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, weberrors.Transient("transcript service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, weberrors.Permanent("video has no transcript", nil)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, weberrors.Transient(fmt.Sprintf("transcript service returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return nil, weberrors.Permanent(fmt.Sprintf("transcript service returned %d", resp.StatusCode), nil)
	}

	var tr transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, weberrors.SoftParse("failed to decode transcript response", err)
	}
	if !tr.HasTranscript || len(tr.Segments) == 0 {
		return nil, weberrors.Permanent("video has no transcript", nil)
	}

	var b strings.Builder
	for _, seg := range tr.Segments {
		b.WriteString(seg.Text)
		b.WriteString("\n")
	}

	return &FetchedDocument{
		Text:            strings.TrimSpace(b.String()),
		Title:           tr.Title,
		Language:        tr.Language,
		Kind:            "video",
		SourceURL:       rawURL,
		DurationSeconds: int(tr.Duration),
		ChannelTitle:    tr.Channel,
		Segments:        tr.Segments,
		Validators: Validators{
			StatusCode: resp.StatusCode,
		},
	}, nil
}

// VideoChannelExpanderConfig configures channel enumeration bounds.
type VideoChannelExpanderConfig struct {
	BaseURL  string
	Timeout  time.Duration
	MaxVideos int
}

// DefaultVideoChannelExpanderConfig returns N_channel_max as the default bound.
func DefaultVideoChannelExpanderConfig() VideoChannelExpanderConfig {
	return VideoChannelExpanderConfig{
		BaseURL:   "http://localhost:8090",
		Timeout:   30 * time.Second,
		MaxVideos: DefaultChannelMax,
	}
}

// VideoChannelExpander enumerates a channel's video URLs (spec §4.4). It
// produces no chunkable document itself: callers mark the channel entry
// fetched after a successful call to Expand.
type VideoChannelExpander struct {
	client *http.Client
	cfg    VideoChannelExpanderConfig
}

// NewVideoChannelExpander builds an expander against cfg.BaseURL.
func NewVideoChannelExpander(cfg VideoChannelExpanderConfig) *VideoChannelExpander {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultVideoChannelExpanderConfig().Timeout
	}
	if cfg.MaxVideos <= 0 {
		cfg.MaxVideos = DefaultChannelMax
	}
	return &VideoChannelExpander{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
	}
}

// Expand enumerates up to max video URLs reachable from channelURL. A
// max of 0 falls back to the expander's configured default bound.
func (e *VideoChannelExpander) Expand(ctx context.Context, channelURL string, max int) ([]string, error) {
	if max <= 0 {
		max = e.cfg.MaxVideos
	}

	endpoint := fmt.Sprintf("%s/channel?url=%s&max=%d", e.cfg.BaseURL, url.QueryEscape(channelURL), max)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, weberrors.Permanent("failed to build channel request", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, weberrors.Transient("transcript service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, weberrors.Transient(fmt.Sprintf("channel service returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return nil, weberrors.Permanent(fmt.Sprintf("channel service returned %d", resp.StatusCode), nil)
	}

	var cr channelResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, weberrors.SoftParse("failed to decode channel response", err)
	}

	urls := cr.VideoURLs
	if len(urls) > max {
		urls = urls[:max]
	}
	return urls, nil
}
