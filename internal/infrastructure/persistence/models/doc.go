// Package models holds the GORM table mappings for invoices, invoice items,
// payments, rooms and student profiles, with conversions to and from the
// domain types. Schema changes go through the SQL files in /migrations;
// these structs are never auto-migrated outside tests.
package models
