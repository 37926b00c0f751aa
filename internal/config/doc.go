// SPDX-License-Identifier: MPL-2.0

// Package config handles envschema configuration using Viper with CUE as the file format.
//
// The file is looked up, in order, at the path given with --config, at
// config.cue in the user config directory ($XDG_CONFIG_HOME/envschema on
// Linux, ~/Library/Application Support/envschema on macOS,
// %APPDATA%\envschema on Windows) and at .envschema.cue in the working
// directory. Without a file the defaults apply. Every key can be overridden
// with an ENVSCHEMA_ environment variable, e.g. ENVSCHEMA_OUTPUT_FORMAT=json.
//
// Files are validated against the embedded config_schema.cue before use.
package config
