// Package store is the resource persistence service: SQLite-backed storage
// for every resource type in the registry.
//
// The table layout is generated from the registry at open time: one table
// per resource type (TEXT primary key plus one column per attribute and per
// to-one relationship) and one join table per to-many relationship. All
// mutations run inside an explicit transaction (Tx); the atomic pipeline
// opens one transaction per batch and commits or rolls back as a whole.
package store
