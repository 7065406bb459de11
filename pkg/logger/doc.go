// Package logger provides the structured zap logger used across screensim.
//
// Every entry is JSON with an ISO8601 timestamp, the process id and the
// service name. The *WithContext methods additionally attach the request
// correlation id (see package requestid) and, when tracing is enabled, the
// OpenTelemetry trace and span ids of the active span.
//
// Basic Usage:
//
//	log := logger.NewLoggerClient(logger.Config{Level: logger.Info, ServiceName: "screensim"})
//
//	log.Info("collection ready", nil, map[string]interface{}{
//		"collection": "screenshots",
//	})
//
//	log.ErrorWithContext(ctx, "embedding request failed", err, map[string]interface{}{
//		"bucket": ref.Bucket,
//		"key":    ref.Key,
//	})
//
// Configuration:
//
//	ZAP_LOGGER_LEVEL=debug          # debug, info, warning, error
//	LOGGER_SERVICE_NAME=screensim
//	LOGGER_ENABLE_TRACING=true
//
// All methods are safe for concurrent use.
package logger
