// Package prometheus exposes engine counters as a client_golang collector.
//
// Values are read from [authcore.Engine.MetricsSnapshot] at scrape time;
// nothing is double counted in a second registry.
package prometheus
