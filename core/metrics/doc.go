// Package metrics defines the sinks assignment runs are reported to. Sinks
// like PromSink and InfluxSink (infra/metrics) record one event per run and
// can be combined with NewMultiSink. NewMetricsSink builds sinks from
// configuration and returns a MultiSink automatically when several are
// configured.
package metrics
