package media

import "testing"

func TestTypeForFilename(t *testing.T) {
	tests := []struct {
		name     string
		expected Type
	}{
		{"photo.jpg", Image},
		{"photo.JPG", Image},
		{"photo.png", Image},
		{"clip.mp4", Video},
		{"clip.MOV", Video},
		{"clip.webm", Video},
		{"noextension", Image},
	}
	for _, tt := range tests {
		if got := TypeForFilename(tt.name); got != tt.expected {
			t.Errorf("TypeForFilename(%q) = %s, want %s", tt.name, got, tt.expected)
		}
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"a.jpeg", "image/jpeg"},
		{"a.mp4", "video/mp4"},
		{"a.mov", "video/quicktime"},
		{"a.bin", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := ContentType(tt.name); got != tt.expected {
			t.Errorf("ContentType(%q) = %s, want %s", tt.name, got, tt.expected)
		}
	}
}

func TestDedupe(t *testing.T) {
	dests := []Destination{
		InstagramDestination{BusinessAccountID: "ig1"},
		YouTubeDestination{ChannelID: "yt1"},
		InstagramDestination{BusinessAccountID: "ig1"},
		InstagramDestination{BusinessAccountID: "ig2"},
		YouTubeDestination{ChannelID: "yt1"},
	}

	got := Dedupe(dests)
	if len(got) != 3 {
		t.Fatalf("expected 3 destinations after dedupe, got %d", len(got))
	}
	wantIDs := []string{"ig1", "yt1", "ig2"}
	for i, id := range wantIDs {
		if got[i].ID() != id {
			t.Errorf("destination %d: expected %s, got %s", i, id, got[i].ID())
		}
	}
}

func TestDestinationPlatform(t *testing.T) {
	if p := (InstagramDestination{BusinessAccountID: "ig1"}).Platform(); p != "instagram" {
		t.Errorf("expected instagram, got %s", p)
	}
	if p := (YouTubeDestination{ChannelID: "yt1"}).Platform(); p != "youtube" {
		t.Errorf("expected youtube, got %s", p)
	}
}
