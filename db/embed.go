// Package db embeds the PostgreSQL schema: tables and the stored procedures
// the service calls on every request path.
package db

import _ "embed"

// Schema creates the tables and (re)creates every stored procedure. It is
// idempotent and safe to run on each start.
//
//go:embed migrations/001_schema.sql
var Schema string

// Catalog is the default seed data: books and zip codes.
//
//go:embed seed/catalog.json
var Catalog []byte
