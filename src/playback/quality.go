package playback

// A QualityLevel is one selectable rendition of the media.
type QualityLevel struct {
	Label   string `json:"label"`
	Bitrate int    `json:"bitrate,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

// An AudioTrack is one selectable audio rendition of the media.
type AudioTrack struct {
	Label    string `json:"name"`
	Language string `json:"language,omitempty"`
}
