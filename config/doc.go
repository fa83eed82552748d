// Package config defines the configuration of subdomain enumeration runs, with
// defaults, optional YAML configuration files, and validation.
package config
