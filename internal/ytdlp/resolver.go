package ytdlp

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/veranemoloko/media-downloader/internal/config"
	"github.com/veranemoloko/media-downloader/internal/domain"
)

// FallbackChain prefers H.264 in MP4 with M4A audio, then any MP4, then anything.
const FallbackChain = "bv*[vcodec^=avc1][ext=mp4]+ba[ext=m4a]/b[vcodec^=avc1][ext=mp4]/best[ext=mp4]/best"

var youtubeHosts = map[string]bool{
	"www.youtube.com": true,
	"youtube.com":     true,
	"youtu.be":        true,
	"www.youtu.be":    true,
	"m.youtube.com":   true,
}

// IsYouTubeHost reports whether host is one of the supported YouTube hosts.
func IsYouTubeHost(host string) bool {
	return youtubeHosts[strings.ToLower(host)]
}

// Resolver turns a download request into extraction options. It only reads
// static configuration and the cookie file's size.
type Resolver struct {
	outputDir          string
	maxFilesize        int64
	retries            int
	fragmentRetries    int
	httpChunkSize      int64
	scriptRuntimes     config.ScriptRuntimes
	remoteComponents   []string
	verbose            bool
	cookieFile         string
	cookiesYouTubeOnly bool
	useNetrc           bool
	netrcPath          string
	netrcCmd           string
}

func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{
		outputDir:          cfg.OutputFolder,
		maxFilesize:        cfg.MaxFilesize,
		retries:            cfg.YTDLPRetries,
		fragmentRetries:    cfg.YTDLPFragmentRetries,
		httpChunkSize:      cfg.YTDLPHTTPChunkSize,
		scriptRuntimes:     cfg.ScriptRuntimeMap(),
		remoteComponents:   cfg.RemoteComponents,
		verbose:            cfg.YTDLPVerbose,
		cookieFile:         cfg.CookiesFile,
		cookiesYouTubeOnly: cfg.CookiesYouTubeOnly,
		useNetrc:           cfg.UseNetrc,
		netrcPath:          cfg.NetrcPath,
		netrcCmd:           cfg.NetrcCmd,
	}
}

// OutputDir is where downloads are written.
func (r *Resolver) OutputDir() string { return r.outputDir }

// WorkDir is the directory one request downloads into. Requests with a
// progress key get their own subdirectory so two runs of the same video
// never share a file.
func (r *Resolver) WorkDir(req domain.DownloadRequest) string {
	name := filepath.Base(req.ProgressKey)
	if req.ProgressKey == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return r.outputDir
	}
	return filepath.Join(r.outputDir, name)
}

// Resolve builds the options for req. host is the already validated URL host.
func (r *Resolver) Resolve(req domain.DownloadRequest, host string) ExtractionOptions {
	base := r.baseOptions(r.WorkDir(req), host)
	if req.Mode == domain.ModeAudio {
		return audioOptions(base, req)
	}
	return videoOptions(base, req)
}

func videoOptions(o ExtractionOptions, req domain.DownloadRequest) ExtractionOptions {
	if req.FormatSpec == "" || req.FormatSpec == domain.DefaultFormat {
		o.Format = FallbackChain
	} else {
		o.Format = req.FormatSpec + "/" + FallbackChain
	}
	o.MergeOutputFormat = VideoContainer
	return o
}

func audioOptions(o ExtractionOptions, req domain.DownloadRequest) ExtractionOptions {
	o.Format = req.FormatSpec
	if o.Format == "" {
		o.Format = domain.DefaultFormat
	}
	o.PostProcessors = []PostProcessor{{Key: ExtractAudio, PreferredCodec: AudioCodec}}
	return o
}

func (r *Resolver) baseOptions(dir, host string) ExtractionOptions {
	o := ExtractionOptions{
		OutputTemplate:  filepath.Join(dir, OutputTemplate),
		Retries:         r.retries,
		FragmentRetries: r.fragmentRetries,
		ContinuePartial: true,
		ForceOverwrite:  true,
		MaxFilesize:     r.maxFilesize,
		Verbose:         r.verbose,
	}
	if r.httpChunkSize > 0 {
		o.HTTPChunkSize = r.httpChunkSize
	}
	if len(r.scriptRuntimes) > 0 {
		o.ScriptRuntimes = make(map[string]map[string]string, len(r.scriptRuntimes))
		for name, settings := range r.scriptRuntimes {
			copied := make(map[string]string, len(settings))
			for k, v := range settings {
				copied[k] = v
			}
			o.ScriptRuntimes[name] = copied
		}
	}
	if len(r.remoteComponents) > 0 {
		o.RemoteComponents = append([]string(nil), r.remoteComponents...)
	}

	if r.cookiesAllowed(host) {
		o.CookieFile = r.cookieFile
	}
	if r.useNetrc {
		o.Netrc = true
		o.NetrcLocation = r.netrcPath
	}
	o.NetrcCmd = r.netrcCmd
	return o
}

func (r *Resolver) cookiesAllowed(host string) bool {
	if r.cookieFile == "" {
		return false
	}
	if r.cookiesYouTubeOnly && !IsYouTubeHost(host) {
		return false
	}
	info, err := os.Stat(r.cookieFile)
	return err == nil && !info.IsDir() && info.Size() > 0
}
