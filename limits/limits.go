package limits

// Ceiling names as reported to clients.
const (
	MaxLength              = "maxLength"
	MaxPlaylistLength      = "maxPlaylistLength"
	MaxGifLength           = "maxGifLength"
	MaxGifResolution       = "maxGifResolution"
	MaxLengthPlaylistVideo = "maxLengthPlaylistVideo"
)

// Limit is one reported ceiling.
type Limit struct {
	ID    string `json:"limitid"`
	Value int    `json:"limitvalue"`
}

// Registry holds the configured ceilings. It is built once from
// configuration and never mutated afterwards.
type Registry struct {
	maxLength              int // seconds
	maxPlaylistLength      int // entries
	maxGifLength           int // seconds
	maxGifResolution       int // pixels, gif height
	maxLengthPlaylistVideo int // seconds, per playlist entry
}

// New builds a registry from raw ceiling values.
func New(maxLength, maxPlaylistLength, maxGifLength, maxGifResolution, maxLengthPlaylistVideo int) *Registry {
	return &Registry{
		maxLength:              maxLength,
		maxPlaylistLength:      maxPlaylistLength,
		maxGifLength:           maxGifLength,
		maxGifResolution:       maxGifResolution,
		maxLengthPlaylistVideo: maxLengthPlaylistVideo,
	}
}

func (r *Registry) MaxLength() int              { return r.maxLength }
func (r *Registry) MaxPlaylistLength() int      { return r.maxPlaylistLength }
func (r *Registry) MaxGifLength() int           { return r.maxGifLength }
func (r *Registry) MaxGifResolution() int       { return r.maxGifResolution }
func (r *Registry) MaxLengthPlaylistVideo() int { return r.maxLengthPlaylistVideo }

// Report lists every ceiling in a fixed order.
func (r *Registry) Report() []Limit {
	return []Limit{
		{ID: MaxLength, Value: r.maxLength},
		{ID: MaxPlaylistLength, Value: r.maxPlaylistLength},
		{ID: MaxGifLength, Value: r.maxGifLength},
		{ID: MaxGifResolution, Value: r.maxGifResolution},
		{ID: MaxLengthPlaylistVideo, Value: r.maxLengthPlaylistVideo},
	}
}
