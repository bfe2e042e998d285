package loadengine

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/torosent/crankfeed/internal/metrics"
)

// header opens a run in the output stream.
type header struct {
	Run        string    `json:"run"`
	Name       string    `json:"name"`
	Thresholds []string  `json:"thresholds,omitempty"`
	Started    time.Time `json:"started"`
}

// trailer closes a run in the output stream.
type trailer struct {
	Run      string    `json:"run"`
	Finished time.Time `json:"finished"`
}

// lineKind classifies one output line.
type lineKind int

const (
	lineUnknown lineKind = iota
	lineHeader
	lineSample
	lineTrailer
)

func classify(line []byte) lineKind {
	res := gjson.GetManyBytes(line, "seq", "name", "finished")
	switch {
	case res[0].Exists():
		return lineSample
	case res[1].Exists():
		return lineHeader
	case res[2].Exists():
		return lineTrailer
	default:
		return lineUnknown
	}
}

// lineWriter serialises concurrent line writes and keeps the first error.
type lineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	seq int64
	err error
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{enc: json.NewEncoder(w)}
}

func (w *lineWriter) write(v any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.encode(v)
}

// sample records one request outcome with the next sequence number.
func (w *lineWriter) sample(run string, latency time.Duration, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	w.encode(metrics.NewSample(run, w.seq, latency, err))
}

func (w *lineWriter) encode(v any) {
	if w.err != nil {
		return
	}
	w.err = w.enc.Encode(v)
}

func (w *lineWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
