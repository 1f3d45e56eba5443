package auth

import "errors"

// Role is what a token holder may do.
type Role string

const (
	// RoleViewer may read components, messages and history.
	RoleViewer Role = "viewer"

	// RoleOperator may also cancel prints, update components, publish and
	// clear the message store.
	RoleOperator Role = "operator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleViewer || r == RoleOperator
}

// CanOperate reports whether r may perform mutating operations.
func (r Role) CanOperate() bool {
	return r == RoleOperator
}

// Sentinel errors.
var (
	ErrTokenInvalid   = errors.New("auth: invalid token")
	ErrTokenExpired   = errors.New("auth: token has expired")
	ErrInvalidRole    = errors.New("auth: invalid role")
	ErrMissingSubject = errors.New("auth: subject is required")
	ErrMissingSecret  = errors.New("auth: signing secret is required")
)
