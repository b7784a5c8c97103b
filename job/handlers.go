package job

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Atronar/yt-dlp-web-api/archive"
	"github.com/Atronar/yt-dlp-web-api/faults"
	"github.com/Atronar/yt-dlp-web-api/fetcher"
	"github.com/Atronar/yt-dlp-web-api/models"
	"github.com/Atronar/yt-dlp-web-api/retry"
	"github.com/Atronar/yt-dlp-web-api/sanitize"
)

// Audio codecs whose yt-dlp output extension equals the codec name.
var audioFormats = map[string]bool{
	"mp3":  true,
	"m4a":  true,
	"opus": true,
	"flac": true,
	"wav":  true,
}

const defaultAudioFormat = "mp3"

func (r *run) requireSingle() error {
	if models.IsCollectionURL(r.req.URL) {
		return faults.Validationf("Method is for singular videos")
	}
	return nil
}

func (r *run) requireURL() error {
	if strings.TrimSpace(r.req.URL) == "" {
		return faults.Validationf("Missing url")
	}
	return nil
}

func (r *run) fetchInfo(ctx context.Context, url string, subtitles bool) (*fetcher.MediaInfo, error) {
	return retry.Do(ctx, r.policy, func(ctx context.Context) (*fetcher.MediaInfo, error) {
		proxy, err := r.proxy()
		if err != nil {
			return nil, err
		}
		return r.Fetcher.Info(ctx, url, fetcher.InfoOptions{Subtitles: subtitles, Proxy: proxy})
	})
}

func (r *run) download(ctx context.Context, url string, opts fetcher.DownloadOptions) error {
	return retry.Run(ctx, r.policy, func(ctx context.Context) error {
		proxy, err := r.proxy()
		if err != nil {
			return err
		}
		opts.Proxy = proxy
		return r.Fetcher.Download(ctx, url, opts)
	})
}

func (r *run) checkDuration(info *fetcher.MediaInfo) error {
	if info.Duration > float64(r.Limits.MaxLength()) {
		return faults.Validationf("Video is longer than configured maximum length")
	}
	return nil
}

// fetchSingle validates the URL shape, fetches metadata and enforces the
// duration ceiling.
func (r *run) fetchSingle(ctx context.Context) (*fetcher.MediaInfo, error) {
	if err := r.requireURL(); err != nil {
		return nil, err
	}
	if err := r.requireSingle(); err != nil {
		return nil, err
	}
	info, err := r.fetchInfo(ctx, r.req.URL, false)
	if err != nil {
		return nil, err
	}
	if err := r.checkDuration(info); err != nil {
		return nil, err
	}
	return info, nil
}

func (r *run) toAudio(ctx context.Context) (models.Payload, error) {
	codec := defaultAudioFormat
	if r.req.AudioFormat != nil && *r.req.AudioFormat != "" {
		codec = strings.ToLower(*r.req.AudioFormat)
	}
	if !audioFormats[codec] {
		return nil, faults.Validationf("Unsupported audio format %q", codec)
	}
	if codec != "mp3" && hasTags(r.req.ID3) {
		return nil, faults.Validationf("id3 tags can only be written to mp3")
	}
	if err := r.Tagger.Validate(r.req.ID3); err != nil {
		return nil, err
	}

	info, err := r.fetchSingle(ctx)
	if err != nil {
		return nil, err
	}

	title := sanitize.Sanitize(info.Title)
	base := artifactName(title, urlKey(r.req.URL))
	err = r.download(ctx, r.req.URL, fetcher.DownloadOptions{
		Output:      r.path(base),
		Format:      "bestaudio/best",
		AudioFormat: codec,
	})
	if err != nil {
		return nil, err
	}

	name := artifactName(base, codec)
	if hasTags(r.req.ID3) {
		err := retry.Run(ctx, r.policy, func(context.Context) error {
			return r.Tagger.Apply(r.path(name), r.req.ID3)
		})
		if err != nil {
			return nil, err
		}
	}

	r.artifacts = append(r.artifacts, r.path(name))
	return models.AudioResult{Link: downloadLink(r.BaseURL, name), Title: title}, nil
}

func hasTags(tags map[string]*string) bool {
	for _, v := range tags {
		if v != nil && *v != "" {
			return true
		}
	}
	return false
}

func (r *run) playlist(ctx context.Context) (models.Payload, error) {
	if err := r.requireURL(); err != nil {
		return nil, err
	}
	if !models.IsCollectionURL(r.req.URL) {
		return nil, faults.Validationf("Method is for playlists")
	}

	info, err := r.fetchInfo(ctx, r.req.URL, false)
	if err != nil {
		return nil, err
	}
	if !info.IsPlaylist() {
		return nil, faults.Validationf("Method is for playlists")
	}
	if len(info.Entries) > r.Limits.MaxPlaylistLength() {
		return nil, faults.Validationf("Playlist is longer than configured maximum length")
	}
	for _, e := range info.Entries {
		if e.Duration > float64(r.Limits.MaxLengthPlaylistVideo()) {
			return nil, faults.Validationf("Video in playlist is longer than configured maximum length")
		}
	}

	archiveName := artifactName(sanitize.Sanitize(info.Title)+r.newToken(), "zip")
	asm, err := retry.Do(ctx, r.policy, func(context.Context) (*archive.Assembler, error) {
		return archive.Create(r.path(archiveName))
	})
	if err != nil {
		return nil, err
	}
	// A failure below leaves a partial archive for the janitor.
	defer asm.Close()

	title := ""
	for i, e := range info.Entries {
		entryURL := WatchURL + e.ID
		title = sanitize.Sanitize(e.Title)
		name := artifactName(title, urlKey(entryURL))

		r.log.Debugf("Playlist entry %d/%d: %s", i+1, len(info.Entries), entryURL)
		err := r.download(ctx, entryURL, fetcher.DownloadOptions{
			Output:      r.path(name),
			Format:      "bestaudio/best",
			AudioFormat: defaultAudioFormat,
		})
		if err != nil {
			return nil, fmt.Errorf("playlist entry %d: %w", i+1, err)
		}

		audio := r.path(artifactName(name, defaultAudioFormat))
		if err := retry.Run(ctx, r.policy, func(context.Context) error { return asm.Append(audio) }); err != nil {
			return nil, fmt.Errorf("playlist entry %d: %w", i+1, err)
		}
	}

	if err := asm.Close(); err != nil {
		return nil, err
	}
	r.log.Infof("Playlist archive %s holds %d entries", archiveName, asm.Count())
	r.artifacts = append(r.artifacts, asm.Path())
	return models.PlaylistResult{Link: downloadLink(r.BaseURL, archiveName), Title: title}, nil
}

func (r *run) subtitles(ctx context.Context) (models.Payload, error) {
	if err := r.requireURL(); err != nil {
		return nil, err
	}
	if err := r.requireSingle(); err != nil {
		return nil, err
	}

	switch r.req.Step.Int(0) {
	case 1:
		info, err := r.fetchInfo(ctx, r.req.URL, true)
		if err != nil {
			return nil, err
		}
		return models.SubtitleChoices{
			Title:  sanitize.Sanitize(info.Title),
			Select: info.SubtitleLanguages(),
			Step:   0,
		}, nil

	case 2:
		if r.req.LanguageCode == nil {
			return nil, faults.Validationf("Missing languageCode")
		}
		langs := splitLangs(*r.req.LanguageCode)
		if len(langs) == 0 {
			return nil, faults.Validationf("Missing languageCode")
		}

		info, err := r.fetchInfo(ctx, r.req.URL, false)
		if err != nil {
			return nil, err
		}
		title := sanitize.Sanitize(info.Title)
		base := artifactName(title, urlKey(r.req.URL))

		err = r.download(ctx, r.req.URL, fetcher.DownloadOptions{
			Output:    r.path(base),
			Format:    "worst",
			Subtitles: &fetcher.SubtitleOptions{Langs: langs, Auto: r.req.AutoSub},
		})
		if err != nil {
			return nil, err
		}

		name := artifactName(base, langs[0], "vtt")
		if _, err := os.Stat(r.path(name)); err != nil {
			return nil, fmt.Errorf("subtitle track %s was not produced", langs[0])
		}
		r.artifacts = append(r.artifacts, r.path(name))
		return models.SubtitleResult{Link: downloadLink(r.BaseURL, name), Title: title}, nil
	}
	return nil, nil
}

func splitLangs(code string) []string {
	var langs []string
	for _, l := range strings.Split(code, ",") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}

func (r *run) clip(ctx context.Context) (models.Payload, error) {
	if r.req.TimeA == nil || r.req.TimeB == nil {
		return nil, faults.Validationf("Missing timeA or timeB")
	}
	timeA, timeB := r.req.TimeA.Int(0), r.req.TimeB.Int(0)
	if timeA < 0 || timeB <= timeA {
		return nil, faults.Validationf("Invalid clip range %d-%d", timeA, timeB)
	}

	info, err := r.fetchSingle(ctx)
	if err != nil {
		return nil, err
	}
	if r.req.Gif && timeB-timeA > r.Limits.MaxGifLength() {
		return nil, faults.Validationf("Range is too large for gif")
	}

	title := sanitize.Sanitize(info.Title)
	ext := info.Ext
	if ext == "" {
		ext = "mp4"
	}
	source := artifactName(title, urlKey(r.req.URL), ext)

	if r.req.DirectURL != nil && *r.req.DirectURL != "" {
		direct := *r.req.DirectURL
		err = retry.Run(ctx, r.policy, func(ctx context.Context) error {
			proxy, err := r.proxy()
			if err != nil {
				return err
			}
			return r.Direct.Fetch(ctx, direct, r.path(source), proxy)
		})
	} else {
		opts := fetcher.DownloadOptions{Output: r.path(source)}
		if r.req.FormatID != nil {
			opts.Format = *r.req.FormatID
		}
		err = r.download(ctx, r.req.URL, opts)
	}
	if err != nil {
		return nil, err
	}

	out := "mp4"
	if r.req.Gif {
		out = "gif"
	}
	name := artifactName(title, r.newToken(), "clipped", out)
	err = retry.Run(ctx, r.policy, func(ctx context.Context) error {
		if r.req.Gif {
			return r.Transcoder.Gif(ctx, r.path(source), r.path(name), timeA, timeB, r.Limits.MaxGifResolution())
		}
		return r.Transcoder.Clip(ctx, r.path(source), r.path(name), timeA, timeB)
	})
	if err != nil {
		return nil, err
	}

	r.artifacts = append(r.artifacts, r.path(name))
	return models.ClipResult{Link: downloadLink(r.BaseURL, name), Title: title}, nil
}

func (r *run) combine(ctx context.Context) (models.Payload, error) {
	if r.req.FormatID == nil || *r.req.FormatID == "" || r.req.FormatIDAudio == nil || *r.req.FormatIDAudio == "" {
		return nil, faults.Validationf("Missing format_id or format_id_audio")
	}

	info, err := r.fetchSingle(ctx)
	if err != nil {
		return nil, err
	}

	ptitle := sanitize.Sanitize(info.Title) + r.newToken()
	name := artifactName(ptitle, urlKey(r.req.URL), "mp4")
	err = r.download(ctx, r.req.URL, fetcher.DownloadOptions{
		Output:      r.path(name),
		Format:      *r.req.FormatID + "+" + *r.req.FormatIDAudio,
		MergeFormat: "mp4",
	})
	if err != nil {
		return nil, err
	}

	r.artifacts = append(r.artifacts, r.path(name))
	return models.CombineResult{Link: downloadLink(r.BaseURL, name), Title: ptitle}, nil
}

func (r *run) info(ctx context.Context) (models.Payload, error) {
	if err := r.requireURL(); err != nil {
		return nil, err
	}
	if err := r.requireSingle(); err != nil {
		return nil, err
	}
	info, err := r.fetchInfo(ctx, r.req.URL, false)
	if err != nil {
		return nil, err
	}

	res := models.InfoResult{
		Title: sanitize.Sanitize(info.Title),
		Ext:   info.Ext,
		Info:  info.Raw,
	}
	if r.req.Method == models.MethodStreams {
		empty := ""
		res.Details = &empty
		res.Select = &empty
	}
	return res, nil
}

func (r *run) limits() (models.Payload, error) {
	return models.LimitsResult{Limits: r.Limits.Report()}, nil
}
