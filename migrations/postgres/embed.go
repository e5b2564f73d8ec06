// Package postgres embebe los archivos de migración del backend pg.
package postgres

import "embed"

//go:embed *.sql
var Files embed.FS
