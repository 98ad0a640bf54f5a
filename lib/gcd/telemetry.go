package gcd

import "gcdfetch/lib/telemetry"

var tracer = telemetry.Tracer("gcdfetch.lib.gcd")
var meter = telemetry.Meter("gcdfetch.lib.gcd")

var downloadedBytes, _ = meter.Int64Counter(
	"gcd.download.bytes",
)
