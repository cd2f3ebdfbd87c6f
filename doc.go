// Package shelf implements the authentication and account administration
// core of a JWT-secured catalog backend: credential verification, token
// issuance, and role-based account lifecycle management (lockout, role
// assignment, password reset), backed by a relational credential store.
package shelf
