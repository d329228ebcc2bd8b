// Package logger provides structured logging backed by zerolog.
//
// It supports JSON and console output, level configuration, and derived
// loggers carrying a component name or request correlation id. The
// Info/Error methods take optional field maps, which is the shape the
// httpclient pipeline expects from its logger.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.New(&cfg, "billing")
//	log.Info("request sent", logger.Fields("request_id", id))
package logger
