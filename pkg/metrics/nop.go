package metrics

import (
	"net/http"
	"time"
)

// NopMetrics is a no-op implementation of the Metrics interface.
type NopMetrics struct{}

func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

func (m *NopMetrics) ObserveOperation(op, result string, latency time.Duration) {}
func (m *NopMetrics) SetBalance(value float64)                                  {}
func (m *NopMetrics) IncTransfersSubmitted()                                    {}
func (m *NopMetrics) SetReceiptStatus(status string)                            {}

func (m *NopMetrics) HTTPHandler() http.Handler {
	return http.NotFoundHandler()
}
