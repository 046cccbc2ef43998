// Package config reads the server's process-wide environment
// variables, generalizing the teacher's inline getenv helper
// (cmd/coordinator/main.go, cmd/node/main.go) into typed accessors for
// the booleans and strings spec §6 calls out by name.
package config

import (
	"os"
	"strconv"
)

// Bool reads an environment variable as a boolean, defaulting to def
// if unset or unparseable. Accepts the usual strconv.ParseBool forms
// plus "1"/"0", matching dmlc::GetEnv's liberal truthiness in the
// original implementation.
func Bool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// String reads an environment variable, defaulting to def if unset.
func String(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// Int reads an environment variable as an int, defaulting to def if
// unset or unparseable.
func Int(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EnableLEMethod reports whether ENABLE_LEMETHOD is set, switching the
// server into push-based model distribution mode (spec §4.2, §4.9).
func EnableLEMethod() bool { return Bool("ENABLE_LEMETHOD", false) }

// EnableTSEngine reports whether ENABLE_TSENGINE is set, switching the
// default dense handler to respond before applying the update and to
// use the auto-pull response path (spec §4.7, Open Question a).
func EnableTSEngine() bool { return Bool("ENABLE_TSENGINE", false) }

// RowSparseVerbose reports whether verbose row-sparse logging is
// enabled.
func RowSparseVerbose() bool { return Bool("MXNET_KVSTORE_DIST_ROW_SPARSE_VERBOSE", false) }
