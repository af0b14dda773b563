// Package db carries the embedded schema applied at boot.
package db

import _ "embed"

//go:embed schema.sql
var Schema string
