package fetcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/Atronar/yt-dlp-web-api/faults"
	"github.com/Atronar/yt-dlp-web-api/logger"

	"github.com/lrstanley/go-ytdlp"
)

// Markers in yt-dlp's stderr that indicate a network fault worth one more
// attempt rather than a permanent extractor failure.
var transientMarkers = []string{
	"timed out",
	"Connection reset",
	"Connection refused",
	"Temporary failure in name resolution",
	"HTTP Error 500",
	"HTTP Error 502",
	"HTTP Error 503",
	"HTTP Error 504",
	"Unable to connect to proxy",
	"IncompleteRead",
}

// YtDlp drives the yt-dlp executable.
type YtDlp struct {
	executable string
}

// NewYtDlp creates a fetcher using the yt-dlp binary at executable.
func NewYtDlp(executable string) *YtDlp {
	return &YtDlp{executable: executable}
}

func (y *YtDlp) command() *ytdlp.Command {
	cmd := ytdlp.New().NoWarnings().NoProgress()
	if y.executable != "" {
		cmd.SetExecutable(y.executable)
	}
	return cmd
}

// Info fetches the metadata document for url without downloading media.
func (y *YtDlp) Info(ctx context.Context, url string, opts InfoOptions) (*MediaInfo, error) {
	cmd := y.command().DumpSingleJSON().SkipDownload()
	if opts.Subtitles {
		cmd.WriteSubs().AllSubs()
	}
	if opts.Proxy != "" {
		cmd.Proxy(opts.Proxy)
	}

	logger.Debugf("yt-dlp info: %s", url)
	res, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, classifyRunError(err, res)
	}
	return ParseInfo([]byte(res.Stdout))
}

// Download retrieves url according to opts.
func (y *YtDlp) Download(ctx context.Context, url string, opts DownloadOptions) error {
	if opts.Output == "" {
		return fmt.Errorf("download of %s has no output path", url)
	}

	cmd := y.command().NoPlaylist().Output(opts.Output)
	if opts.Format != "" {
		cmd.Format(opts.Format)
	}
	if opts.AudioFormat != "" {
		cmd.ExtractAudio().AudioFormat(opts.AudioFormat).AudioQuality("192K")
	}
	if opts.MergeFormat != "" {
		cmd.MergeOutputFormat(opts.MergeFormat)
	}
	if s := opts.Subtitles; s != nil {
		cmd.WriteSubs().SubFormat("vtt")
		if s.Auto {
			cmd.WriteAutoSubs()
		}
		if len(s.Langs) > 0 {
			cmd.SubLangs(strings.Join(s.Langs, ","))
		}
	}
	if opts.Proxy != "" {
		cmd.Proxy(opts.Proxy)
	}

	logger.Debugf("yt-dlp download: %s -> %s", url, opts.Output)
	res, err := cmd.Run(ctx, url)
	if err != nil {
		return classifyRunError(err, res)
	}
	return nil
}

func classifyRunError(err error, res *ytdlp.Result) error {
	stderr := ""
	if res != nil {
		stderr = res.Stderr
	}
	wrapped := fmt.Errorf("yt-dlp failed: %w", err)
	if msg := lastLine(stderr); msg != "" {
		wrapped = fmt.Errorf("yt-dlp failed: %s: %w", msg, err)
	}
	for _, m := range transientMarkers {
		if strings.Contains(stderr, m) {
			return faults.MarkTransient(wrapped)
		}
	}
	return wrapped
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
