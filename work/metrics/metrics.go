package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RequestsTotal counts finished requests per route and response status.
var RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "oxycors_requests_total",
	Help: "Total requests served",
}, []string{"endpoint", "status"})

// RequestsInFlight tracks requests currently being handled. It can go up and
// down as clients connect and disconnect.
var RequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "oxycors_requests_in_flight",
	Help: "Number of requests currently being served",
})

// RequestsRejected counts requests turned away by the concurrency limit.
var RequestsRejected = promauto.NewCounter(prometheus.CounterOpts{
	Name: "oxycors_requests_rejected_total",
	Help: "Requests rejected because the concurrency limit was reached",
})

// BytesTransferred counts segment bytes copied from upstream to clients.
var BytesTransferred = promauto.NewCounter(prometheus.CounterOpts{
	Name: "oxycors_segment_bytes_total",
	Help: "Total segment bytes streamed to clients",
})

// UpstreamErrors counts failed upstream fetches. The "error_type" label is
// either "unreachable" or "rejected".
var UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "oxycors_upstream_errors_total",
	Help: "Number of failed upstream fetches",
}, []string{"endpoint", "error_type"})

// Extractions counts hosting-page extractions by outcome ("found" or "absent").
var Extractions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "oxycors_extractions_total",
	Help: "Hosting-page manifest extractions",
}, []string{"result"})

// PlaylistsRewritten counts rewritten playlists by kind (master, media, unknown).
var PlaylistsRewritten = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "oxycors_playlists_rewritten_total",
	Help: "Playlists rewritten",
}, []string{"kind"})

// URIsRewritten counts rewritten references by route (manifest or segment).
var URIsRewritten = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "oxycors_uris_rewritten_total",
	Help: "Playlist references rewritten to proxy links",
}, []string{"route"})
