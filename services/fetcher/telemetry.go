package fetcher

import "gcdfetch/lib/telemetry"

var tracer = telemetry.Tracer("gcdfetch.services.fetcher")
var meter = telemetry.Meter("gcdfetch.services.fetcher")

var runCounter, _ = meter.Int64Counter(
	"gcd.runs",
)
