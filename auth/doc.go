// Package auth provides account storage and bearer-token issuance for the
// puzzle server.
//
// Accounts live in a SQLite database; passwords are stored as SHA-256
// digests. Login issues an HS256 JWT carrying the username and role, which
// the rest of the server treats as an opaque bearer token: the gateway only
// ever calls Validate and Role on it.
package auth
