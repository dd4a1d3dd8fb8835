// Package http contains the chi HTTP handlers for the data API. Handlers
// depend on narrow service interfaces, return JSON via chi/render and map
// service errors onto RFC 7807 problem responses through the shared error
// handler.
package http
