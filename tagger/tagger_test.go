package tagger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Atronar/yt-dlp-web-api/faults"

	"github.com/bogem/id3v2/v2"
)

func str(s string) *string { return &s }

func newAudioFile(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(p, []byte{0xFF, 0xFB, 0x90, 0x00}, 0644); err != nil {
		t.Fatalf("Failed to write audio file: %v", err)
	}
	return p
}

func TestApplyWritesNonEmptyValues(t *testing.T) {
	path := newAudioFile(t)

	err := New().Apply(path, map[string]*string{
		"title":       str("Song"),
		"artist":      str("Band"),
		"album":       str(""),
		"genre":       nil,
		"tracknumber": str("3"),
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("Failed to reopen: %v", err)
	}
	defer tag.Close()

	if tag.Title() != "Song" || tag.Artist() != "Band" {
		t.Errorf("Unexpected title/artist %q/%q", tag.Title(), tag.Artist())
	}
	if tag.Album() != "" || tag.Genre() != "" {
		t.Errorf("Empty values should be skipped, got album %q genre %q", tag.Album(), tag.Genre())
	}
	if got := tag.GetTextFrame("TRCK").Text; got != "3" {
		t.Errorf("Expected track 3, got %q", got)
	}
}

func TestApplyRejectsUnknownTag(t *testing.T) {
	path := newAudioFile(t)
	err := New().Apply(path, map[string]*string{"flavour": str("salty")})
	if !faults.IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestApplyNothingIsNoop(t *testing.T) {
	// The file does not exist; nothing to write means it is never opened.
	if err := New().Apply("/nope/missing.mp3", map[string]*string{"title": nil}); err != nil {
		t.Errorf("Expected no-op, got %v", err)
	}
}

func TestValidateChecksNamesOnly(t *testing.T) {
	tg := New()
	if err := tg.Validate(map[string]*string{"Title": str("x"), "bogus": nil, "mood": str("")}); err != nil {
		t.Errorf("Empty values and known names should pass, got %v", err)
	}
	err := tg.Validate(map[string]*string{"zeta": str("1"), "alpha": str("2")})
	if !faults.IsValidation(err) || err.Error() != `Unsupported id3 tag "alpha"` {
		t.Errorf("Expected first unknown name in sorted order, got %v", err)
	}
}
