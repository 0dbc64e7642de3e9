package datasource

import (
	"fmt"
	"strings"
)

// Descriptor is a parsed connection descriptor: a dialect plus the
// dialect-specific connection string handed to the driver.
type Descriptor struct {
	Type string // registry key: "postgres", "sqlserver", "duckdb"
	DSN  string
}

// ParseDescriptor maps an opaque connection string onto a registered
// dialect. Recognized forms:
//
//	postgres://... | postgresql://...  → postgres
//	sqlserver://... | mssql://...      → sqlserver
//	duckdb://path | duckdb:path        → duckdb
//	path ending in .duckdb or .db      → duckdb (local file)
//
// The descriptor itself is never logged verbatim since it may embed
// credentials.
func ParseDescriptor(connStr string) (Descriptor, error) {
	s := strings.TrimSpace(connStr)
	if s == "" {
		return Descriptor{}, fmt.Errorf("empty connection string")
	}

	switch {
	case strings.HasPrefix(s, "postgres://"), strings.HasPrefix(s, "postgresql://"):
		return Descriptor{Type: "postgres", DSN: s}, nil

	case strings.HasPrefix(s, "sqlserver://"):
		return Descriptor{Type: "sqlserver", DSN: s}, nil

	case strings.HasPrefix(s, "mssql://"):
		// go-mssqldb expects the sqlserver scheme
		return Descriptor{Type: "sqlserver", DSN: "sqlserver://" + strings.TrimPrefix(s, "mssql://")}, nil

	case strings.HasPrefix(s, "duckdb://"):
		return Descriptor{Type: "duckdb", DSN: strings.TrimPrefix(s, "duckdb://")}, nil

	case strings.HasPrefix(s, "duckdb:"):
		return Descriptor{Type: "duckdb", DSN: strings.TrimPrefix(s, "duckdb:")}, nil

	case strings.HasSuffix(s, ".duckdb"), strings.HasSuffix(s, ".db"):
		return Descriptor{Type: "duckdb", DSN: s}, nil
	}

	return Descriptor{}, fmt.Errorf("unrecognized connection string scheme (supported: postgres://, sqlserver://, duckdb:)")
}

// Redacted returns the descriptor's DSN with any password component
// replaced, suitable for logs.
func (d Descriptor) Redacted() string {
	at := strings.LastIndex(d.DSN, "@")
	scheme := strings.Index(d.DSN, "://")
	if at == -1 || scheme == -1 || at < scheme {
		return d.DSN
	}
	creds := d.DSN[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon != -1 {
		creds = creds[:colon] + ":***"
	}
	return d.DSN[:scheme+3] + creds + d.DSN[at:]
}
