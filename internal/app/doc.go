// Package app assembles the application: configuration, logging,
// telemetry, the drive client, the tiered cache, the data service, the
// websocket hub and the HTTP router, plus the background cache maintenance
// loops and graceful shutdown.
package app
