// Package config provides the configuration of a link checking run:
// the defaults, validation, and the optional .linkcheck configuration file.
package config
