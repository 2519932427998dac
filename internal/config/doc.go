// SPDX-License-Identifier: MPL-2.0

// Package config loads wares settings with Viper from, in increasing
// precedence: built-in defaults, a TOML file (config.toml in the user config
// directory, or an explicit path), the project .env file and WARES_*
// environment variables.
package config
