package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Method names accepted in the request envelope.
const (
	MethodToAudio   = "toMP3"
	MethodPlaylist  = "playlist"
	MethodSubtitles = "subtitles"
	MethodClip      = "clip"
	MethodCombine   = "combine"
	MethodLimits    = "limits"

	// Info is reachable under several names; the name is echoed back.
	MethodGetInfo = "getInfo"
	MethodStreams = "streams"
	MethodInfo    = "info"
)

// Kind is the operation a request resolves to.
type Kind int

const (
	KindUnknown Kind = iota
	KindToAudio
	KindPlaylist
	KindSubtitles
	KindClip
	KindCombine
	KindInfo
	KindLimits
)

var kindNames = map[Kind]string{
	KindUnknown:   "unknown",
	KindToAudio:   "toAudio",
	KindPlaylist:  "playlist",
	KindSubtitles: "subtitles",
	KindClip:      "clip",
	KindCombine:   "combine",
	KindInfo:      "info",
	KindLimits:    "limits",
}

func (k Kind) String() string { return kindNames[k] }

// KindOf maps an envelope method name to its operation.
func KindOf(method string) Kind {
	switch method {
	case MethodToAudio, "toAudio":
		return KindToAudio
	case MethodPlaylist:
		return KindPlaylist
	case MethodSubtitles:
		return KindSubtitles
	case MethodClip:
		return KindClip
	case MethodCombine:
		return KindCombine
	case MethodGetInfo, MethodStreams, MethodInfo:
		return KindInfo
	case MethodLimits:
		return KindLimits
	}
	return KindUnknown
}

// Request is one inbound job envelope. Optional fields are pointers; a
// nil pointer means the client did not send the field.
type Request struct {
	Method    string  `json:"method"`
	SpinnerID *string `json:"spinnerid"`
	URL       string  `json:"url"`

	// toMP3
	ID3         map[string]*string `json:"id3,omitempty"`
	AudioFormat *string            `json:"audioFormat,omitempty"`

	// subtitles
	Step         *FlexInt `json:"step,omitempty"`
	LanguageCode *string  `json:"languageCode,omitempty"`
	AutoSub      bool     `json:"autoSub,omitempty"`

	// clip
	DirectURL *string  `json:"directURL,omitempty"`
	Gif       bool     `json:"gif,omitempty"`
	TimeA     *FlexInt `json:"timeA,omitempty"`
	TimeB     *FlexInt `json:"timeB,omitempty"`

	// clip, combine
	FormatID      *string `json:"format_id,omitempty"`
	FormatIDAudio *string `json:"format_id_audio,omitempty"`
}

// IsCollectionURL reports whether url addresses a list rather than a
// single video.
func IsCollectionURL(url string) bool {
	return strings.Contains(url, "list")
}

// FlexInt is an integer that clients may send as a number or a numeric
// string.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("expected an integer, got %q", s)
		}
		*f = FlexInt(n)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected an integer: %w", err)
	}
	if n != float64(int(n)) {
		return fmt.Errorf("expected an integer, got %v", n)
	}
	*f = FlexInt(n)
	return nil
}

// Int returns the value, or def when f is nil.
func (f *FlexInt) Int(def int) int {
	if f == nil {
		return def
	}
	return int(*f)
}

// MirrorTarget is an extra destination finished artifacts are copied to.
type MirrorTarget struct {
	Type        string            `json:"type"`        // "local", "s3", "gcs" or "sftp"
	Credentials map[string]string `json:"credentials"` // backend specific settings
}
