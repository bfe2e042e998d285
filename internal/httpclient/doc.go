// Package httpclient builds and executes the HTTP request described by a test
// definition.
//
// Use [NewRequestBuilder] to create a builder from a definition, and wrap it
// in a [Requester] to drive it from the runner:
//
//	builder, err := httpclient.NewRequestBuilder(def)
//	if err != nil {
//		return err
//	}
//	req := &httpclient.Requester{
//		Client:  httpclient.NewClient(def.Timeout),
//		Builder: builder,
//	}
//	err = req.Do(ctx)
//
// The [NewClient] function creates an HTTP client tuned for load testing with
// a request timeout and connection reuse.
package httpclient
