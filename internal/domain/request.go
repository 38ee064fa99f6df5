package domain

import "fmt"

// DownloadMode selects what the extraction engine should produce.
type DownloadMode string

const (
	ModeVideo DownloadMode = "video"
	ModeAudio DownloadMode = "audio"
)

// ParseMode maps the API value to a DownloadMode. Empty means video.
func ParseMode(s string) (DownloadMode, error) {
	switch DownloadMode(s) {
	case "", ModeVideo:
		return ModeVideo, nil
	case ModeAudio:
		return ModeAudio, nil
	default:
		return "", fmt.Errorf("unknown download mode %q", s)
	}
}

// DefaultFormat is the format expression used when the caller did not pick one.
const DefaultFormat = "bestvideo+bestaudio"

// DownloadRequest is one inbound download. It is not modified after construction.
type DownloadRequest struct {
	URL         string
	Mode        DownloadMode
	FormatSpec  string
	RequesterID int64
	ProgressKey string
}

// NewDownloadRequest fills in the default format expression.
func NewDownloadRequest(url string, mode DownloadMode, formatSpec string, requesterID int64, progressKey string) DownloadRequest {
	if formatSpec == "" {
		formatSpec = DefaultFormat
	}
	return DownloadRequest{
		URL:         url,
		Mode:        mode,
		FormatSpec:  formatSpec,
		RequesterID: requesterID,
		ProgressKey: progressKey,
	}
}

// Dimensions of a delivered video.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DownloadOutcome describes the single canonical deliverable of a successful run.
type DownloadOutcome struct {
	LocalPath  string
	Dimensions *Dimensions
	Title      string
	Delivery   DeliveryReceipt
}

// DeliveryReceipt is what the delivery target reports back.
type DeliveryReceipt struct {
	Target   string `json:"target"`
	Location string `json:"location"`
}

// Deliverable is the final local file handed to a delivery target.
type Deliverable struct {
	Request    DownloadRequest
	Path       string
	Dimensions *Dimensions
	Title      string
}
