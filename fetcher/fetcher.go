// Package fetcher resolves media URLs to metadata and downloads them.
package fetcher

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Entry is one item of a playlist.
type Entry struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}

// MediaInfo is the subset of extractor metadata the service makes
// decisions on. Raw carries the complete document for Info responses.
type MediaInfo struct {
	ID        string
	Title     string
	Duration  float64 // seconds
	Ext       string
	Entries   []Entry
	Subtitles map[string]json.RawMessage
	Raw       map[string]any
}

// IsPlaylist reports whether the document described a collection.
func (m *MediaInfo) IsPlaylist() bool {
	return m.Entries != nil
}

// SubtitleLanguages returns the available subtitle codes, sorted.
func (m *MediaInfo) SubtitleLanguages() []string {
	langs := make([]string, 0, len(m.Subtitles))
	for code := range m.Subtitles {
		langs = append(langs, code)
	}
	sort.Strings(langs)
	return langs
}

// InfoOptions tune a metadata query.
type InfoOptions struct {
	Subtitles bool // list available subtitle tracks
	Proxy     string
}

// SubtitleOptions select subtitle tracks to write next to a download.
type SubtitleOptions struct {
	Langs []string
	Auto  bool // include auto-generated tracks
}

// DownloadOptions describe one download. Output is a complete path
// without extension unless the caller wants a fixed one.
type DownloadOptions struct {
	Output      string
	Format      string // yt-dlp format selector, empty for default
	AudioFormat string // when set, extract audio and encode to this codec
	MergeFormat string // container for merged video+audio selections
	Subtitles   *SubtitleOptions
	Proxy       string
}

type rawInfo struct {
	ID        string                     `json:"id"`
	Title     string                     `json:"title"`
	Duration  *float64                   `json:"duration"`
	Ext       string                     `json:"ext"`
	Entries   []*rawEntry                `json:"entries"`
	Subtitles map[string]json.RawMessage `json:"subtitles"`
}

type rawEntry struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Duration *float64 `json:"duration"`
}

// ParseInfo decodes a single-JSON extractor document.
func ParseInfo(data []byte) (*MediaInfo, error) {
	var raw rawInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode media info: %w", err)
	}
	var full map[string]any
	if err := json.Unmarshal(data, &full); err != nil {
		return nil, fmt.Errorf("failed to decode media info: %w", err)
	}

	info := &MediaInfo{
		ID:        raw.ID,
		Title:     raw.Title,
		Ext:       raw.Ext,
		Subtitles: raw.Subtitles,
		Raw:       full,
	}
	if raw.Duration != nil {
		info.Duration = *raw.Duration
	}
	if info.Subtitles == nil {
		info.Subtitles = map[string]json.RawMessage{}
	}
	if raw.Entries != nil {
		info.Entries = make([]Entry, 0, len(raw.Entries))
		for i, e := range raw.Entries {
			if e == nil {
				// Unavailable videos show up as null entries.
				return nil, fmt.Errorf("playlist entry %d is unavailable", i+1)
			}
			entry := Entry{ID: e.ID, Title: e.Title}
			if e.Duration != nil {
				entry.Duration = *e.Duration
			}
			info.Entries = append(info.Entries, entry)
		}
	}
	return info, nil
}
