package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency       = metric.NewHistogram("1m1s")
	MessageSize           = metric.NewHistogram("10s1s")
	MessagesPerSecond     = metric.NewCounter("10s1s")
	BytesPerSecond        = metric.NewCounter("10s1s")
	DropsPerSecond        = metric.NewCounter("10s1s")
	LinkChangesPerSecond  = metric.NewCounter("10s1s")
	RouteQueriesPerSecond = metric.NewCounter("10s1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("ripple:MessageSize", MessageSize)

	expvar.Publish("ripple:Messages/s", MessagesPerSecond)
	expvar.Publish("ripple:Bytes/s", BytesPerSecond)
	expvar.Publish("ripple:Drops/s", DropsPerSecond)
	expvar.Publish("ripple:LinkChanges/s", LinkChangesPerSecond)
	expvar.Publish("ripple:RouteQueries/s", RouteQueriesPerSecond)
	expvar.Publish("ripple:DispatchLatency (µs)", DispatchLatency)
}
