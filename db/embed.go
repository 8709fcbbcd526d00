// Package db provides embedded database schema, migration and seed files.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedCoupons is the default coupon catalogue as a JSON array.
//
//go:embed seed/coupons.json
var SeedCoupons []byte
