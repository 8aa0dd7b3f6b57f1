// Package flows holds the orchestration behind every Engine operation.
//
// Each Run function takes a dependency struct of plain functions and returns
// a result whose Failure kind the Engine maps onto errors, metrics and audit
// events. Flows own no resources and keep no state between calls, which lets
// tests drive them with stubs.
//
// The package must not import authcore.
package flows
