// Package middleware provides the HTTP middleware chain of the service.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
//   - CORS for browser uploads
//   - Panic recovery
//
// The router is wrapped outside-in as Recover, Logger, CORS; Metrics is
// installed with Router.Use so it sees the matched route.
package middleware
