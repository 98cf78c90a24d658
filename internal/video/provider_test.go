package video

import "testing"

func TestYouTubeID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://m.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://vimeo.com/123456", ""},
		{"https://www.youtube.com/watch?v=short", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := YouTubeID(tt.in); got != tt.want {
			t.Errorf("YouTubeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFrameOrigin(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://player.example.com/embed/abc?x=1", "https://player.example.com"},
		{"https://player.example.com:8443/e/1", "https://player.example.com:8443"},
		{"/relative/path", ""},
		{"::not a url", ""},
	}

	for _, tt := range tests {
		if got := FrameOrigin(tt.in); got != tt.want {
			t.Errorf("FrameOrigin(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
