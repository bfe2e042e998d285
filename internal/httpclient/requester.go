package httpclient

import (
	"context"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/crankfeed/internal/runner"
	"github.com/torosent/crankfeed/internal/tracing"
)

const (
	maxLoggedBodyBytes = 1024
	maxBodyReadSize    = 1024 * 1024
)

// Requester executes the built request once per call and implements
// runner.Requester. Responses with status >= 400 fail with a
// *runner.HTTPError.
type Requester struct {
	Client    *http.Client
	Builder   *RequestBuilder
	Tracer    trace.Tracer // optional; spans are skipped when nil
	Propagate bool         // inject W3C trace headers
}

var _ runner.Requester = (*Requester)(nil)

func (r *Requester) Do(ctx context.Context) error {
	var span trace.Span
	if r.Tracer != nil {
		ctx, span = tracing.StartRequestSpan(ctx, r.Tracer, r.Builder.Method(), r.Builder.Target())
	}

	status, err := r.do(ctx)

	if span != nil {
		var attrs []attribute.KeyValue
		if status > 0 {
			attrs = append(attrs, attribute.Int("http.response.status_code", status))
		}
		tracing.EndSpan(span, err, attrs...)
	}
	return err
}

func (r *Requester) do(ctx context.Context) (int, error) {
	req, err := r.Builder.Build(ctx)
	if err != nil {
		return 0, err
	}
	if r.Propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	// Body read errors are non-fatal; the status decides the outcome.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyReadSize))
	if resp.StatusCode >= 400 {
		snippet := body
		if len(snippet) > maxLoggedBodyBytes {
			snippet = snippet[:maxLoggedBodyBytes]
		}
		return resp.StatusCode, &runner.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	return resp.StatusCode, nil
}
