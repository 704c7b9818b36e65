// SPDX-License-Identifier: MPL-2.0

// Package config handles svcload configuration using Viper with CUE as the
// file format.
//
// The file is read from $XDG_CONFIG_HOME/svcload/config.cue (the platform
// equivalent on macOS and Windows), then ./config.cue. Values are validated
// against the embedded config_schema.cue and may be overridden with SVCLOAD_
// environment variables, e.g. SVCLOAD_MIXED_DECLARATIONS=append or
// SVCLOAD_MODULE_PATH=./mods,./vendor/mods.
package config
