package models

import (
	"encoding/json"
	"fmt"

	"github.com/Atronar/yt-dlp-web-api/limits"
)

// Payload is the operation specific part of a successful response. The
// set of implementations is closed.
type Payload interface {
	payload()
}

// AudioResult is returned by toMP3.
type AudioResult struct {
	Link  string `json:"link"`
	Title string `json:"title"`
}

// PlaylistResult is returned by playlist. Title is the last processed
// entry's title.
type PlaylistResult struct {
	Link  string `json:"link"`
	Title string `json:"title"`
}

// SubtitleChoices is step one of subtitles. Step and Details are markers
// for the client to present a selection and call again with step 2.
type SubtitleChoices struct {
	Title   string   `json:"title"`
	Select  []string `json:"select"`
	Step    int      `json:"step"`
	Details string   `json:"details"`
}

// SubtitleResult is step two of subtitles.
type SubtitleResult struct {
	Link  string `json:"link"`
	Title string `json:"title"`
}

type ClipResult struct {
	Link  string `json:"link"`
	Title string `json:"title"`
}

type CombineResult struct {
	Link  string `json:"link"`
	Title string `json:"title"`
}

// InfoResult carries the full metadata document. Details and Select are
// set, empty, only for the "streams" method.
type InfoResult struct {
	Title   string         `json:"title"`
	Ext     string         `json:"ext"`
	Info    map[string]any `json:"info"`
	Details *string        `json:"details,omitempty"`
	Select  *string        `json:"select,omitempty"`
}

type LimitsResult struct {
	Limits []limits.Limit `json:"limits"`
}

func (AudioResult) payload()     {}
func (PlaylistResult) payload()  {}
func (SubtitleChoices) payload() {}
func (SubtitleResult) payload()  {}
func (ClipResult) payload()      {}
func (CombineResult) payload()   {}
func (InfoResult) payload()      {}
func (LimitsResult) payload()    {}

// Response is the envelope sent back for every request. A failed
// response carries Details and never a Payload.
type Response struct {
	Method    string
	Error     bool
	SpinnerID *string
	Details   string
	Payload   Payload
}

// Init is the response every handler starts from: failed, no details.
// An unrecognized subtitles step returns it unchanged.
func Init(method string, spinnerID *string) Response {
	return Response{Method: method, Error: true, SpinnerID: spinnerID}
}

// Fail returns r as a failure carrying details.
func (r Response) Fail(details string) Response {
	r.Error = true
	r.Details = details
	r.Payload = nil
	return r
}

// Succeed returns r as a success carrying p.
func (r Response) Succeed(p Payload) Response {
	r.Error = false
	r.Details = ""
	r.Payload = p
	return r
}

// Link returns the download link of a successful response, if any.
func (r Response) Link() string {
	if r.Error {
		return ""
	}
	switch p := r.Payload.(type) {
	case AudioResult:
		return p.Link
	case PlaylistResult:
		return p.Link
	case SubtitleResult:
		return p.Link
	case ClipResult:
		return p.Link
	case CombineResult:
		return p.Link
	}
	return ""
}

// MarshalJSON flattens the envelope and payload into one object.
func (r Response) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"method":    r.Method,
		"error":     r.Error,
		"spinnerid": r.SpinnerID,
	}

	if r.Error {
		if r.Details != "" {
			out["details"] = r.Details
		}
		return json.Marshal(out)
	}

	if r.Payload != nil {
		raw, err := json.Marshal(r.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %T: %w", r.Payload, err)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		for k, v := range fields {
			if _, reserved := out[k]; reserved {
				continue
			}
			out[k] = v
		}
	}
	return json.Marshal(out)
}
