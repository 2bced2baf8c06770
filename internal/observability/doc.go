// Package observability builds the process logger and the Prometheus
// metrics shared by change capture, the alert scheduler, the delivery
// queue and the HTTP server.
package observability
