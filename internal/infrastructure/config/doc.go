// Package config handles loading and validating Gray Logic hub configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Backend tokens and secrets should be set via environment variables
//     (GRAYLOGIC_SMARTTHINGS_TOKEN, GRAYLOGIC_TUYA_SECRET, ...)
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/hub.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.EnabledBackends())
package config
