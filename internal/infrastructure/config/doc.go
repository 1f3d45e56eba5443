// Package config handles loading and validating printwatch configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with PRINTWATCH_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Broker passwords and the JWT secret should be set via environment variables
//   - An empty security.jwt.secret leaves mutating API routes unauthenticated,
//     which is only appropriate on a trusted network
//
// Usage:
//
//	cfg, err := config.Load(config.DefaultPath)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Printer.BaseTopic)
package config
