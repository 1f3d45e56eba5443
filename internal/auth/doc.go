// Package auth issues and verifies the bearer tokens guarding printwatch's
// mutating API routes.
//
// Tokens are HS256 JWTs signed with security.jwt.secret. Each carries a
// Role: viewers can read, operators can also cancel prints, update
// components, publish messages and clear the store. Tokens are minted
// offline with `printwatch token`; there is no user database.
package auth
