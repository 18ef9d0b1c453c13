// Package logging provides structured logging for the bridge.
//
// It wraps log/slog and stamps every entry with service=fujibridge and the
// build version.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("heat pump connected", "port", cfg.HeatPump.Port)
//	logger.Error("mqtt publish failed", "error", err)
//
// Never log secrets: MQTT or remote-serial passwords, tokens, JWT secrets.
package logging
