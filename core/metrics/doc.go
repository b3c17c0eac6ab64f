// Package metrics defines interfaces and implementations for collecting
// optimization metrics. Sinks like PromSink and InfluxSink record plan
// outcomes and vehicle state snapshots and can be combined with NewMultiSink.
// The factory helpers return a MultiSink automatically when multiple sinks
// are configured. Helper functions expose Prometheus metrics and collect
// events from the internal event bus.
package metrics
