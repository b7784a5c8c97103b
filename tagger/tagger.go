// Package tagger writes ID3 metadata onto finished audio artifacts.
package tagger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Atronar/yt-dlp-web-api/faults"

	"github.com/bogem/id3v2/v2"
)

// Frame ids for the tag names clients may send besides the ones with
// dedicated setters.
var textFrames = map[string]string{
	"albumartist":  "TPE2",
	"tracknumber":  "TRCK",
	"discnumber":   "TPOS",
	"composer":     "TCOM",
	"lyricist":     "TEXT",
	"copyright":    "TCOP",
	"organization": "TPUB",
	"encodedby":    "TENC",
	"language":     "TLAN",
	"bpm":          "TBPM",
	"mood":         "TMOO",
	"conductor":    "TPE3",
}

// ID3 applies tag maps with id3v2.
type ID3 struct{}

func New() *ID3 { return &ID3{} }

// Supported reports whether name is an accepted tag name.
func Supported(name string) bool {
	switch strings.ToLower(name) {
	case "title", "artist", "album", "date", "year", "genre":
		return true
	}
	_, ok := textFrames[strings.ToLower(name)]
	return ok
}

// Validate rejects the first non-empty tag whose name is not supported.
// Names are checked in sorted order so the reported one is stable.
func (ID3) Validate(tags map[string]*string) error {
	_, err := collect(tags)
	return err
}

func collect(tags map[string]*string) (map[string]string, error) {
	names := make([]string, 0, len(tags))
	for name, v := range tags {
		if v != nil && *v != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	values := map[string]string{}
	for _, name := range names {
		if !Supported(name) {
			return nil, faults.Validationf("Unsupported id3 tag %q", name)
		}
		values[strings.ToLower(name)] = *tags[name]
	}
	return values, nil
}

// Apply writes every non-empty value in tags onto the file at path.
// Nil or empty values leave the existing frame untouched. Unknown tag
// names are rejected before the file is opened.
func (ID3) Apply(path string, tags map[string]*string) error {
	values, err := collect(tags)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open %s for tagging: %w", path, err)
	}
	defer tag.Close()

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := values[name]
		switch name {
		case "title":
			tag.SetTitle(v)
		case "artist":
			tag.SetArtist(v)
		case "album":
			tag.SetAlbum(v)
		case "date", "year":
			tag.SetYear(v)
		case "genre":
			tag.SetGenre(v)
		default:
			tag.AddTextFrame(textFrames[name], tag.DefaultEncoding(), v)
		}
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save tags on %s: %w", path, err)
	}
	return nil
}
