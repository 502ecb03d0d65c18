package model

import "strings"

// Track represents a playable song as produced by search, library or import features.
// The engine treats it as an immutable value.
type Track struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Artist          string  `json:"artist"`
	ArtistID        string  `json:"artistId"`
	Album           string  `json:"album"`
	AlbumID         string  `json:"albumId"`
	DurationSeconds float64 `json:"durationSeconds"`
	CoverArtURL     *string `json:"coverArtUrl"`  // nil when the source has no artwork
	QualityLabel    string  `json:"qualityLabel"` // display label only, e.g. "FLAC 24bit"
	Source          Source  `json:"source"`
}

// SameSong reports whether two tracks carry the same title and artist,
// ignoring case and surrounding whitespace.
func (t Track) SameSong(title, artist string) bool {
	return strings.EqualFold(strings.TrimSpace(t.Title), strings.TrimSpace(title)) &&
		strings.EqualFold(strings.TrimSpace(t.Artist), strings.TrimSpace(artist))
}

// CloneTracks returns a copy of the slice so callers can reorder it freely.
func CloneTracks(tracks []Track) []Track {
	if tracks == nil {
		return nil
	}
	out := make([]Track, len(tracks))
	copy(out, tracks)
	return out
}
