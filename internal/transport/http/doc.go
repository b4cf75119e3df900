// Package http implements the HTTP route modules mounted by the
// registry. Handlers stay thin: they parse and validate the request, run
// repository operations inside a pool session, and hand every failure to
// the error translator so responses share one envelope shape.
//
// # Request Flow
//
//	HTTP Request → Chi Router → Middleware → Handler → Repository → Database
//	                                             ↓
//	HTTP Response ← render ← Translator ←────────┘
//
// Each handler implements registry.Module, so adding a route group to the
// server is a one-line change in the application's module list.
package http
