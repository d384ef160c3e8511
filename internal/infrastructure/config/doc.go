// Package config handles loading and validating access endpoint configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with GRAYLOGIC_ACCESS_* environment variables
//   - Validation of required fields and safety limits
//   - Default value handling
//
// Security Considerations:
//   - The pseudonymization key should come from GRAYLOGIC_ACCESS_HMAC_KEY or
//     a key_file readable only by the service user, never from a shared file
//   - Keys shorter than 16 bytes are rejected
//   - The authorization timeout is capped at 10s so a user at the door never
//     waits indefinitely
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.DoorID)
package config
