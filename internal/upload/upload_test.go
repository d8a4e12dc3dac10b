package upload

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"photo.png", true},
		{"photo.JPG", true},
		{"clip.jpeg", true},
		{"anim.gif", true},
		{"video.MP4", true},
		{"video.mov", true},
		{"archive.tar.gz", false},
		{"script.sh", false},
		{"noext", false},
		{"trailing.", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Allowed(tt.name); got != tt.want {
			t.Errorf("Allowed(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

var storedName = regexp.MustCompile(`^[0-9a-f]{32}\.(png|jpg|jpeg|gif|mp4|mov)$`)

func TestSave(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "uploads"), 1024)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	name, err := s.Save("Flood.PNG", strings.NewReader("pixels"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !storedName.MatchString(name) {
		t.Errorf("Save() name = %q, want <uuid hex>.png", name)
	}
	data, err := os.ReadFile(filepath.Join(s.Dir(), name))
	if err != nil || string(data) != "pixels" {
		t.Errorf("stored content = %q, %v", data, err)
	}

	other, _ := s.Save("flood.png", strings.NewReader("pixels"))
	if other == name {
		t.Error("Save() reused a name")
	}
}

func TestSave_Rejections(t *testing.T) {
	s, err := NewStore(t.TempDir(), 4)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if _, err := s.Save("evil.exe", strings.NewReader("x")); !errors.Is(err, ErrDisallowedExtension) {
		t.Errorf("Save(exe) error = %v, want ErrDisallowedExtension", err)
	}
	if _, err := s.Save("big.png", strings.NewReader("12345")); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Save(oversize) error = %v, want ErrTooLarge", err)
	}
	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 0 {
		t.Errorf("partial files left behind: %d", len(entries))
	}
}

func TestPathAndRemove(t *testing.T) {
	s, err := NewStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	for _, bad := range []string{"", "..", "../etc/passwd", `a\b.png`, "sub/x.png"} {
		if _, err := s.Path(bad); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Path(%q) error = %v, want ErrInvalidName", bad, err)
		}
	}

	name, err := s.Save("x.gif", strings.NewReader("gif"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Remove(name); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := s.Remove(name); err != nil {
		t.Errorf("Remove() of missing file error = %v, want nil", err)
	}
}
