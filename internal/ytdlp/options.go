package ytdlp

import (
	"sort"
	"strconv"
)

// PostProcessor is one step of the engine's post-processing chain.
type PostProcessor struct {
	Key            string
	PreferredCodec string
}

const (
	// ExtractAudio converts the download into an audio-only file.
	ExtractAudio = "FFmpegExtractAudio"

	AudioCodec     = "mp3"
	VideoContainer = "mp4"

	// OutputTemplate names downloaded files "{title:95}-{id}.{ext}".
	OutputTemplate = "%(title).95B-%(id)s.%(ext)s"
)

// ExtractionOptions is the configuration handed to yt-dlp for one request.
// Values are built by Resolver and not modified afterwards.
type ExtractionOptions struct {
	Format            string
	OutputTemplate    string
	Retries           int
	FragmentRetries   int
	ContinuePartial   bool
	ForceOverwrite    bool
	HTTPChunkSize     int64
	MaxFilesize       int64
	ScriptRuntimes    map[string]map[string]string
	RemoteComponents  []string
	Verbose           bool
	CookieFile        string
	Netrc             bool
	NetrcLocation     string
	NetrcCmd          string
	PostProcessors    []PostProcessor
	MergeOutputFormat string
}

// ExtractsAudio reports whether the chain ends in audio extraction.
func (o ExtractionOptions) ExtractsAudio() bool {
	for _, pp := range o.PostProcessors {
		if pp.Key == ExtractAudio {
			return true
		}
	}
	return false
}

// Args renders the options as yt-dlp command line flags.
func (o ExtractionOptions) Args() []string {
	args := []string{
		"-f", o.Format,
		"-o", o.OutputTemplate,
		"--retries", strconv.Itoa(o.Retries),
		"--fragment-retries", strconv.Itoa(o.FragmentRetries),
	}
	if o.ContinuePartial {
		args = append(args, "--continue")
	}
	if o.ForceOverwrite {
		args = append(args, "--force-overwrites")
	}
	if o.HTTPChunkSize > 0 {
		args = append(args, "--http-chunk-size", strconv.FormatInt(o.HTTPChunkSize, 10))
	}
	if o.MaxFilesize > 0 {
		args = append(args, "--max-filesize", strconv.FormatInt(o.MaxFilesize, 10))
	}

	if len(o.ScriptRuntimes) > 0 {
		names := make([]string, 0, len(o.ScriptRuntimes))
		for name := range o.ScriptRuntimes {
			names = append(names, name)
		}
		sort.Strings(names)
		args = append(args, "--no-js-runtimes")
		for _, name := range names {
			spec := name
			if exe := o.ScriptRuntimes[name]["executable"]; exe != "" {
				spec += ":" + exe
			}
			args = append(args, "--js-runtimes", spec)
		}
	}
	for _, component := range o.RemoteComponents {
		args = append(args, "--remote-components", component)
	}

	if o.Verbose {
		args = append(args, "--verbose")
	}
	if o.CookieFile != "" {
		args = append(args, "--cookies", o.CookieFile)
	}
	if o.Netrc {
		args = append(args, "--netrc")
		if o.NetrcLocation != "" {
			args = append(args, "--netrc-location", o.NetrcLocation)
		}
	}
	if o.NetrcCmd != "" {
		args = append(args, "--netrc-cmd", o.NetrcCmd)
	}

	for _, pp := range o.PostProcessors {
		if pp.Key == ExtractAudio {
			args = append(args, "--extract-audio", "--audio-format", pp.PreferredCodec)
		}
	}
	if o.MergeOutputFormat != "" {
		args = append(args, "--merge-output-format", o.MergeOutputFormat)
	}
	return args
}
