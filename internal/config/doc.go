// Package config resolves the harness's startup inputs: the command line
// and the estimator parameter file.
//
// The parameter file is YAML, loaded without any middleware dependency.
// Instead of binding arbitrary keys by reflection, an explicit ordered
// schema of (key, kind, default, required) entries is resolved once at
// startup into a plain Params value. Any unresolved required key or kind
// mismatch is a StartupError.
package config
