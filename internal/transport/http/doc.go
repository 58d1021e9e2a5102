// Package http implements the HTTP handlers of the subscription API. It is
// a thin layer over the services package: handlers parse and validate
// requests, call a service and render the result as JSON, or as an
// RFC 7807 problem through the shared error handler.
//
// # Routes
//
//	GET  /api/health
//	GET  /api/offerings
//	GET  /api/offerings/{id}/latest
//	GET  /api/offerings/{id}/history?limit=N
//	GET  /api/offerings/{id}/export.{csv|xlsx}
//	POST /api/normalize
//
// Each handler exposes Routes() so the application can mount it under its
// own prefix.
package http
