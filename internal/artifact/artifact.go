// Package artifact defines the unit of work flowing through a pipeline: one
// test definition plus the output channel attached by a run.
package artifact

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/torosent/crankfeed/internal/channel"
)

// Artifact is one test definition. Content is held either as a buffer
// (Contents) or as a stream (Stream); an artifact with neither is null and
// bypasses every engine call.
type Artifact struct {
	Location string
	Name     string
	Contents []byte
	Stream   io.Reader

	// Output is attached by a run and consumed by the matching report.
	Output *channel.Channel
}

// NewBuffer creates an artifact backed by a byte buffer. A nil buffer
// produces a null artifact.
func NewBuffer(location string, contents []byte) *Artifact {
	return &Artifact{Location: location, Name: NameOf(location), Contents: contents}
}

// NewStream creates an artifact whose content is read lazily from r.
func NewStream(location string, r io.Reader) *Artifact {
	return &Artifact{Location: location, Name: NameOf(location), Stream: r}
}

// Null creates an artifact without content.
func Null(location string) *Artifact {
	return &Artifact{Location: location, Name: NameOf(location)}
}

// Load reads the file at location into a buffered artifact.
func Load(location string) (*Artifact, error) {
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return NewBuffer(location, data), nil
}

// NameOf derives the engine-facing test name: the base name of location
// without its extension.
func NameOf(location string) string {
	if location == "" {
		return ""
	}
	base := filepath.Base(location)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsNull reports whether the artifact carries no content.
func (a *Artifact) IsNull() bool {
	return a == nil || (a.Contents == nil && a.Stream == nil)
}

// IsStream reports whether the content is read lazily.
func (a *Artifact) IsStream() bool {
	return a != nil && a.Stream != nil
}

// ContentReader exposes the artifact content as a readable channel. A buffer
// yields exactly its bytes; a stream is handed out as-is and can be consumed
// once.
func (a *Artifact) ContentReader() io.Reader {
	if a.IsNull() {
		return bytes.NewReader(nil)
	}
	if a.Stream != nil {
		return a.Stream
	}
	return bytes.NewReader(a.Contents)
}
