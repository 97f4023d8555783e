// Package media defines the validated media selection and the destination
// types shared by the upload coordinator and the publish workflows. An
// Item is created once from the user's validated selection and is
// immutable for the lifetime of a publish attempt.
package media

import (
	"path/filepath"
	"strings"
)

// Type classifies a media file as an image or a video.
type Type string

const (
	Image Type = "image"
	Video Type = "video"
)

// Item is one uploaded media file. Key is the object-storage key assigned
// at upload time. Index is the position in the user's selection order and
// determines carousel item order.
type Item struct {
	Key   string
	Type  Type
	Index int
}

// Destination is one externally-addressable account or channel a post is
// published to. ID is stable and unique per destination and is the key in
// the per-destination state map.
type Destination interface {
	ID() string
	Platform() string
}

// InstagramDestination targets one Instagram business account.
type InstagramDestination struct {
	BusinessAccountID string
}

func (d InstagramDestination) ID() string       { return d.BusinessAccountID }
func (d InstagramDestination) Platform() string { return "instagram" }

// YouTubeDestination targets one YouTube channel.
type YouTubeDestination struct {
	ChannelID string
}

func (d YouTubeDestination) ID() string       { return d.ChannelID }
func (d YouTubeDestination) Platform() string { return "youtube" }

// Dedupe removes destinations with duplicate IDs, keeping the first
// occurrence. Order is otherwise preserved.
func Dedupe(dests []Destination) []Destination {
	seen := make(map[string]struct{}, len(dests))
	out := make([]Destination, 0, len(dests))
	for _, d := range dests {
		if _, ok := seen[d.ID()]; ok {
			continue
		}
		seen[d.ID()] = struct{}{}
		out = append(out, d)
	}
	return out
}

// videoExtensions are the file extensions treated as video content.
var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".avi":  {},
	".mkv":  {},
	".webm": {},
	".m4v":  {},
	".3gp":  {},
}

// TypeForFilename classifies a file as image or video from its extension.
func TypeForFilename(name string) Type {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := videoExtensions[ext]; ok {
		return Video
	}
	return Image
}

// ContentType returns the MIME content type for a filename, used when
// writing the object to storage.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	case ".3gp":
		return "video/3gpp"
	default:
		return "application/octet-stream"
	}
}
