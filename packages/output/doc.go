// Package output renders run results and ad-hoc responses.
//
// Supported formats:
//   - Console: human-readable colored terminal output
//   - JSON: machine-readable envelope for scripting
//   - JUnit: XML for CI test reporting
//   - TAP: Test Anything Protocol
//
// Accumulating formatters implement Flusher and emit nothing until Flush
// is called.
package output
