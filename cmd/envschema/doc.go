// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the envschema command line interface.
//
// The root command validates env files against a JSON Schema. Settings come
// from flags first, then ENVSCHEMA_* environment variables, then the CUE
// config file, then built-in defaults. The config subcommands inspect and
// initialize that file.
package cmd
