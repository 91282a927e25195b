package pricelookup

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("services/pricelookup")
var meter = otel.Meter("services/pricelookup")

var lookupCounter, _ = meter.Int64Counter("lookups_total")
var breakerTripCounter, _ = meter.Int64Counter("breaker_trips_total")
var rateLimitedCounter, _ = meter.Int64Counter("rate_limited_total")
var queueRejectedCounter, _ = meter.Int64Counter("queue_rejected_total")
