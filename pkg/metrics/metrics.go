// Package metrics records chain operation counts and latencies.
package metrics

import (
	"net/http"
	"time"
)

// Operation names used as label values.
const (
	OpBalance  = "balance"
	OpTransfer = "transfer"
	OpReceipt  = "receipt"
)

// Result label values.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultUnknown = "unknown"
)

// Metrics is implemented by PrometheusMetrics and NopMetrics.
type Metrics interface {
	ObserveOperation(op, result string, latency time.Duration)
	SetBalance(value float64)
	IncTransfersSubmitted()
	SetReceiptStatus(status string)
	HTTPHandler() http.Handler
}
