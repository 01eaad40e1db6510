package metrics

// NopMetrics discards all metrics.
type NopMetrics struct{}

var _ Collector = (*NopMetrics)(nil)

// NewNop creates a no-op collector.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

func (n *NopMetrics) EndpointCreated(string)       {}
func (n *NopMetrics) EndpointActivated(string)     {}
func (n *NopMetrics) PayloadDelivered(string, int) {}
func (n *NopMetrics) PayloadDropped(string)        {}
func (n *NopMetrics) EmptyFrame(string)            {}
func (n *NopMetrics) RemoteShutdown(string)        {}
func (n *NopMetrics) Teardown(string, string)      {}
