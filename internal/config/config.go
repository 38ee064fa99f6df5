package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration settings.
type Config struct {
	Environment string `envconfig:"BOT_ENV" default:"development"`

	Token          string `envconfig:"BOT_TOKEN"`
	LogsWebhookURL string `envconfig:"BOT_LOGS_WEBHOOK_URL"`

	HTTPPort        int           `envconfig:"BOT_HTTP_PORT" default:"8080"`
	HTTPTimeout     time.Duration `envconfig:"BOT_HTTP_TIMEOUT" default:"15s"`
	Workers         int           `envconfig:"BOT_WORKERS" default:"2"`
	QueueSize       int           `envconfig:"BOT_QUEUE_SIZE" default:"32"`
	ShutdownTimeout time.Duration `envconfig:"BOT_SHUTDOWN_TIMEOUT" default:"30s"`

	MaxFilesize    int64  `envconfig:"BOT_MAX_FILESIZE" default:"10000000000"`
	OutputFolder   string `envconfig:"BOT_OUTPUT_FOLDER" default:"downloads"`
	DeliveryFolder string `envconfig:"BOT_DELIVERY_FOLDER" default:"delivered"`
	StateFile      string `envconfig:"BOT_STATE_FILE" default:"./state.json"`

	AdminIDs           IDList   `envconfig:"BOT_ADMIN_IDS"`
	BlacklistedDomains []string `envconfig:"BOT_BLACKLISTED_DOMAINS"`

	CookiesFile        string `envconfig:"BOT_COOKIES_FILE" default:"cookies.txt"`
	CookiesYouTubeOnly bool   `envconfig:"BOT_COOKIES_YOUTUBE_ONLY" default:"false"`
	UseNetrc           bool   `envconfig:"BOT_NETRC" default:"false"`
	NetrcPath          string `envconfig:"BOT_NETRC_PATH"`
	NetrcCmd           string `envconfig:"BOT_NETRC_CMD"`

	YTDLPPath            string         `envconfig:"BOT_YTDLP_PATH" default:"yt-dlp"`
	FFmpegPath           string         `envconfig:"BOT_FFMPEG_PATH" default:"ffmpeg"`
	YTDLPVerbose         bool           `envconfig:"BOT_YTDLP_VERBOSE" default:"true"`
	YTDLPRetries         int            `envconfig:"BOT_YTDLP_RETRIES" default:"10"`
	YTDLPFragmentRetries int            `envconfig:"BOT_YTDLP_FRAGMENT_RETRIES" default:"25"`
	YTDLPHTTPChunkSize   int64          `envconfig:"BOT_YTDLP_HTTP_CHUNK_SIZE" default:"5242880"`
	DenoPath             string         `envconfig:"BOT_DENO_PATH"`
	JSRuntimes           ScriptRuntimes `envconfig:"BOT_JS_RUNTIMES"`
	RemoteComponents     []string       `envconfig:"BOT_REMOTE_COMPONENTS"`

	NextcloudBaseURL       string        `envconfig:"BOT_NEXTCLOUD_BASE_URL"`
	NextcloudUsername      string        `envconfig:"BOT_NEXTCLOUD_USERNAME"`
	NextcloudPassword      string        `envconfig:"BOT_NEXTCLOUD_PASSWORD"`
	NextcloudUploadFolder  string        `envconfig:"BOT_NEXTCLOUD_UPLOAD_FOLDER" default:"Downloads"`
	NextcloudSharePassword string        `envconfig:"BOT_NEXTCLOUD_SHARE_PASSWORD"`
	NextcloudShareLabel    string        `envconfig:"BOT_NEXTCLOUD_SHARE_LABEL"`
	NextcloudPublicUpload  bool          `envconfig:"BOT_NEXTCLOUD_PUBLIC_UPLOAD" default:"false"`
	NextcloudPermissions   int           `envconfig:"BOT_NEXTCLOUD_PERMISSIONS" default:"1"`
	NextcloudTimeout       time.Duration `envconfig:"BOT_NEXTCLOUD_TIMEOUT" default:"30s"`

	LogLevel  string `envconfig:"BOT_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"BOT_LOG_FORMAT" default:"json"`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.Workers <= 0 {
		return fmt.Errorf("worker count must be positive: %d", c.Workers)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive: %d", c.QueueSize)
	}

	if c.MaxFilesize <= 0 {
		return fmt.Errorf("max filesize must be positive: %d", c.MaxFilesize)
	}
	if c.YTDLPRetries < 0 || c.YTDLPFragmentRetries < 0 {
		return fmt.Errorf("retry counts cannot be negative: %d/%d", c.YTDLPRetries, c.YTDLPFragmentRetries)
	}
	if c.YTDLPHTTPChunkSize < 0 {
		return fmt.Errorf("http chunk size cannot be negative: %d", c.YTDLPHTTPChunkSize)
	}

	if c.OutputFolder == "" {
		return fmt.Errorf("output folder cannot be empty")
	}
	if c.DeliveryFolder == "" {
		return fmt.Errorf("delivery folder cannot be empty")
	}
	if c.StateFile == "" {
		return fmt.Errorf("state file cannot be empty")
	}

	if c.NextcloudBaseURL != "" {
		u, err := url.Parse(c.NextcloudBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid nextcloud base URL: %q", c.NextcloudBaseURL)
		}
	}
	if c.NextcloudPermissions < 1 || c.NextcloudPermissions > 31 {
		return fmt.Errorf("nextcloud permissions out of range: %d", c.NextcloudPermissions)
	}

	return nil
}

// NextcloudEnabled reports whether remote storage credentials are complete.
func (c *Config) NextcloudEnabled() bool {
	return strings.TrimSpace(c.NextcloudBaseURL) != "" &&
		strings.TrimSpace(c.NextcloudUsername) != "" &&
		strings.TrimSpace(c.NextcloudPassword) != ""
}

// ScriptRuntimeMap returns the configured script runtimes. An explicit
// BOT_JS_RUNTIMES map wins over BOT_DENO_PATH.
func (c *Config) ScriptRuntimeMap() ScriptRuntimes {
	if len(c.JSRuntimes) > 0 {
		return c.JSRuntimes
	}
	if c.DenoPath != "" {
		return ScriptRuntimes{"deno": {"executable": c.DenoPath}}
	}
	return nil
}

// ScriptRuntimes maps a runtime name to its settings, e.g.
// {"deno":{"executable":"/usr/bin/deno"}}. Decoded from JSON.
type ScriptRuntimes map[string]map[string]string

// Decode implements envconfig.Decoder.
func (s *ScriptRuntimes) Decode(value string) error {
	if strings.TrimSpace(value) == "" {
		*s = nil
		return nil
	}
	var m map[string]map[string]string
	if err := json.Unmarshal([]byte(value), &m); err != nil {
		return fmt.Errorf("decode script runtimes: %w", err)
	}
	*s = m
	return nil
}

// IDList is a comma separated list of requester ids. Entries that are not
// integers are skipped.
type IDList []int64

// Decode implements envconfig.Decoder.
func (l *IDList) Decode(value string) error {
	var ids IDList
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	*l = ids
	return nil
}

// Allows reports whether id may use the service. An empty list allows everyone.
func (l IDList) Allows(id int64) bool {
	if len(l) == 0 {
		return true
	}
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}
