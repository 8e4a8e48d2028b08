package database

// This file documents code generation for the database package.
//
// sqlc reads the schema straight from the migration files. To regenerate the
// query code:
//   go generate ./internal/database

//go:generate sh -c "cd sqlc && sqlc generate -f sqlc.yaml"
