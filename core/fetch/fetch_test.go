package fetch

import (
	"errors"
	"testing"
)

func TestValidURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"http://youtube.com/watch?v=abc_DEF-123", true},
		{"https://youtu.be/dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", true},
		{"  https://youtu.be/dQw4w9WgXcQ  ", true},
		{"https://vimeo.com/12345", false},
		{"https://www.youtube.com/playlist?list=PL123", false},
		{"ftp://youtu.be/abc", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidURL(tt.url); got != tt.want {
			t.Errorf("ValidURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestParseProbe(t *testing.T) {
	info, err := parseProbe("dQw4w9WgXcQ\tNever Gonna Give You Up\t212\n")
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if info.ID != "dQw4w9WgXcQ" || info.Title != "Never Gonna Give You Up" || info.Duration != 212 {
		t.Errorf("unexpected info %+v", info)
	}

	info, err = parseProbe("id\tLive Stream\tNA")
	if err != nil || info.Duration != 0 {
		t.Errorf("NA duration: info=%+v err=%v", info, err)
	}

	if _, err := parseProbe(""); !errors.Is(err, ErrNoMedia) {
		t.Errorf("empty output err = %v, want ErrNoMedia", err)
	}
}
