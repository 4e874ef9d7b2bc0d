// Package config defines packaging settings used by the kitpack binaries and
// provides helpers to load, validate and save them in YAML format.
//
// The Config type holds the asset root, output location, target directory
// name, the file manifest, and the ignore-list entries added at install time.
// An absent configuration file selects the built-in sandbox kit defaults.
package config
