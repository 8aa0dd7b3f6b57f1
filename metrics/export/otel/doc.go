// Package otel registers engine counters with an OpenTelemetry meter.
//
// Counters become Int64ObservableCounters. The authorize latency histogram
// is reported Prometheus style: a cumulative bucket gauge labelled "le",
// plus _count and _sum. One callback reads the engine snapshot per
// collection. The caller owns the MeterProvider.
package otel
