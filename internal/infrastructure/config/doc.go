// Package config handles loading and validating the bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with FUJIBRIDGE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Secrets (MQTT and remote-serial passwords, InfluxDB token, JWT secret)
// should be set via environment variables rather than committed to the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Bridge.ID)
package config
