/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the
streaming daemon, tracking HTTP requests, session lifecycle, PTY output
throughput, and WebSocket connections.

# Features

- HTTP request metrics (latency, throughput, size)
- Session lifecycle metrics (per-state counts, restarts)
- Stream metrics (frames, bytes, drops, rejected input)
- WebSocket connection metrics
- Webhook delivery metrics
- System metrics (uptime)

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record custom metrics
	metrics.IncSessionsTotal()
	metrics.RecordOutputFrame(len(chunk))

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
