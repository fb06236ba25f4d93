package proxy

import (
	"context"
	"io"
	"net/http"

	"oxycors/work/buffer"
	"oxycors/work/client"
	"oxycors/work/metrics"
)

// ForwardedSegmentHeaders are the only upstream headers passed to the client.
var ForwardedSegmentHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Encoding",
	"Last-Modified",
	"ETag",
}

// Segment is an open upstream response whose body has not been read yet.
//
// Status is the upstream 2xx status and Header holds only the forwarded
// headers listed in ForwardedSegmentHeaders. Body is relayed through the
// shared buffer pool by WriteTo. The caller must Close it.
type Segment struct {
	Status int           // upstream status, always 2xx
	Header http.Header   // filtered upstream headers to copy to the client
	Body   io.ReadCloser // upstream body, streamed and never buffered whole

	pool *buffer.BufferPool
}

// WriteTo streams the body to w chunk by chunk and counts the bytes relayed.
func (s *Segment) WriteTo(w io.Writer) (int64, error) {
	n, err := s.pool.Copy(w, s.Body)
	metrics.BytesTransferred.Add(float64(n))
	return n, err
}

// Close releases the upstream connection. It is safe to call after a partial
// WriteTo.
func (s *Segment) Close() error {
	return s.Body.Close()
}

// OpenSegment validates requested and opens the upstream body without reading
// it. Non-2xx answers are closed and returned as errors carrying the upstream
// status.
func (p *Proxy) OpenSegment(ctx context.Context, requested string) (*Segment, error) {
	target, err := ParseTarget(requested)
	if err != nil {
		return nil, err
	}
	segmentURL := target.String()
	if err := p.checkAllowed(segmentURL); err != nil {
		return nil, err
	}

	resp, err := p.fetcher.Get(ctx, segmentURL, client.ProfileSegment)
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("segment", KindUpstreamUnreachable.String()).Inc()
		p.log.Error("{proxy/segment - OpenSegment} Network error for %s: %v", p.logURL(segmentURL), err)
		return nil, unreachableError("segment", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		metrics.UpstreamErrors.WithLabelValues("segment", KindUpstreamRejected.String()).Inc()
		p.log.Warn("{proxy/segment - OpenSegment} Upstream responded %s for %s", resp.Status, p.logURL(segmentURL))
		return nil, rejectedError("segment", resp)
	}

	header := make(http.Header, len(ForwardedSegmentHeaders))
	for _, name := range ForwardedSegmentHeaders {
		if v := resp.Header.Get(name); v != "" {
			header.Set(name, v)
		}
	}

	p.log.Debug("{proxy/segment - OpenSegment} Streaming %s (status %d, type %q)", p.logURL(segmentURL), resp.StatusCode, header.Get("Content-Type"))

	return &Segment{
		Status: resp.StatusCode,
		Header: header,
		Body:   resp.Body,
		pool:   p.bufferPool,
	}, nil
}
