package artifact_test

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/torosent/crankfeed/internal/artifact"
)

func TestNameOf(t *testing.T) {
	tests := []struct {
		location string
		want     string
	}{
		{"/test/file.js", "file"},
		{"tests/checkout.yaml", "checkout"},
		{"smoke.test.json", "smoke.test"},
		{"noext", "noext"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := artifact.NameOf(tt.location); got != tt.want {
			t.Errorf("NameOf(%q) = %q, want %q", tt.location, got, tt.want)
		}
	}
}

func TestIsNull(t *testing.T) {
	if !artifact.Null("/test/file.js").IsNull() {
		t.Error("Null() artifact should be null")
	}
	if !artifact.NewBuffer("/test/file.js", nil).IsNull() {
		t.Error("nil buffer should be null")
	}
	if artifact.NewBuffer("/test/file.js", []byte{}).IsNull() {
		t.Error("empty buffer is content, not null")
	}
	if artifact.NewStream("/test/file.js", strings.NewReader("x")).IsNull() {
		t.Error("stream artifact should not be null")
	}
	var nilArtifact *artifact.Artifact
	if !nilArtifact.IsNull() {
		t.Error("nil artifact should be null")
	}
}

func TestContentReader(t *testing.T) {
	buf := artifact.NewBuffer("/test/file.js", []byte("testfile 42"))
	data, err := io.ReadAll(buf.ContentReader())
	if err != nil || string(data) != "testfile 42" {
		t.Fatalf("buffer content = %q, %v", data, err)
	}
	// Buffers can be read more than once.
	data, _ = io.ReadAll(buf.ContentReader())
	if string(data) != "testfile 42" {
		t.Fatalf("second read = %q", data)
	}

	stream := artifact.NewStream("/test/file.js", strings.NewReader("streamed"))
	if !stream.IsStream() {
		t.Fatal("IsStream() = false")
	}
	data, _ = io.ReadAll(stream.ContentReader())
	if string(data) != "streamed" {
		t.Fatalf("stream content = %q", data)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkout.yaml")
	if err := os.WriteFile(path, []byte("target: http://localhost\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := artifact.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if a.Name != "checkout" || a.Location != path {
		t.Fatalf("Load() = %+v", a)
	}
	if a.IsNull() {
		t.Fatal("loaded artifact should carry content")
	}

	if _, err := artifact.Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
