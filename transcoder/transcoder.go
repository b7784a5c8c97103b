// Package transcoder slices downloaded media into clips and gifs by
// shelling out to ffmpeg and gifsicle.
package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/Atronar/yt-dlp-web-api/logger"
)

// Options for a single render.
type Options struct {
	From, To  int // seconds, To exclusive
	MaxHeight int // gif only, 0 keeps the source height
}

// RenderFunc is the signature every output kind implements.
type RenderFunc func(ctx context.Context, input, output string, opts Options) error

// Transcoder maps output kinds ("mp4", "gif") to render functions whose
// commands were found at startup.
type Transcoder struct {
	ffmpeg   string
	gifsicle string
	registry map[string]RenderFunc
	optimize bool
}

// New resolves the tool paths and registers every kind it can serve.
// Missing tools are logged and their kinds left unregistered.
func New(ffmpeg, gifsicle string) *Transcoder {
	t := &Transcoder{
		ffmpeg:   ffmpeg,
		gifsicle: gifsicle,
		registry: map[string]RenderFunc{},
	}
	t.register("mp4", ffmpeg, t.renderClip)
	t.register("gif", ffmpeg, t.renderGif)

	if _, err := exec.LookPath(gifsicle); err != nil {
		logger.Warnf("gif optimization disabled: command '%s' not found in PATH", gifsicle)
	} else {
		t.optimize = true
	}
	return t
}

func (t *Transcoder) register(kind, cmdName string, fn RenderFunc) {
	if _, err := exec.LookPath(cmdName); err != nil {
		logger.Warnf("transcoder [%s] skipped: command '%s' not found in PATH", kind, cmdName)
		return
	}
	t.registry[kind] = fn
	logger.Debugf("transcoder [%s] registered (command: %s)", kind, cmdName)
}

// Supports reports whether kind can be rendered.
func (t *Transcoder) Supports(kind string) bool {
	_, ok := t.registry[kind]
	return ok
}

func (t *Transcoder) render(ctx context.Context, kind, input, output string, opts Options) error {
	if opts.To <= opts.From {
		return fmt.Errorf("invalid range [%d, %d)", opts.From, opts.To)
	}
	fn, ok := t.registry[kind]
	if !ok {
		return fmt.Errorf("transcoder for %s not available", kind)
	}
	return fn(ctx, input, output, opts)
}

// Clip copies [from, to) of input into an mp4 at output.
func (t *Transcoder) Clip(ctx context.Context, input, output string, from, to int) error {
	return t.render(ctx, "mp4", input, output, Options{From: from, To: to})
}

// Gif renders [from, to) of input as an optimized gif no taller than
// maxHeight.
func (t *Transcoder) Gif(ctx context.Context, input, output string, from, to, maxHeight int) error {
	return t.render(ctx, "gif", input, output, Options{From: from, To: to, MaxHeight: maxHeight})
}

func (t *Transcoder) renderClip(ctx context.Context, in, out string, o Options) error {
	return run(ctx, t.ffmpeg, clipArgs(in, out, o)...)
}

func (t *Transcoder) renderGif(ctx context.Context, in, out string, o Options) error {
	if err := run(ctx, t.ffmpeg, gifArgs(in, out, o)...); err != nil {
		return err
	}
	if !t.optimize {
		return nil
	}
	// Optimizes the rendered file in place.
	if err := run(ctx, t.gifsicle, "--batch", "-O3", out); err != nil {
		logger.Warnf("gif optimization failed for %s, keeping unoptimized: %v", out, err)
	}
	return nil
}

func clipArgs(in, out string, o Options) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", fmt.Sprint(o.From),
		"-i", in,
		"-t", fmt.Sprint(o.To - o.From),
		"-map", "0",
		"-c", "copy",
		out,
	}
}

func gifArgs(in, out string, o Options) []string {
	scale := "scale=-1:-1"
	if o.MaxHeight > 0 {
		scale = fmt.Sprintf("scale=-1:'min(%d,ih)':flags=lanczos", o.MaxHeight)
	}
	filter := "fps=10," + scale + ",split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse"
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", fmt.Sprint(o.From),
		"-t", fmt.Sprint(o.To - o.From),
		"-i", in,
		"-vf", filter,
		"-loop", "0",
		out,
	}
}

func run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s failed: %s: %w", name, msg, err)
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}
