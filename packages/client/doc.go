// Package client implements an HTTP client that delegates transport to an
// external curl-compatible tool invoked as a subprocess, instead of a native
// network stack.
//
// Features:
//   - Familiar request/response API with Get/Post/Put/Patch/Delete helpers
//   - Text, JSON, buffer and streamed response shaping
//   - Sequential retries with exponential backoff
//   - Large bodies and binary form parts spooled to temporary files
//   - Timing, redirect and effective-URL metadata parsed from the tool's
//     write-out trailer
//
// Transport behavior (TLS, proxies, redirect following, timeouts) belongs to
// the external tool; the client builds its argument list, runs it, and
// interprets its output. Because the trailer carries only timing and redirect
// data, Response.Status always reports success and Response.Headers is always
// empty — a documented gap kept for compatibility with the library this
// package replaces.
package client
