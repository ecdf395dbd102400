package auth

// DecisionKind enumerates the outcomes of an authorization check.
type DecisionKind int

const (
	Allow DecisionKind = iota
	DenyNoToken
	DenyInvalidToken
	DenyNotOwner
	DenyUserNotFound
)

// String returns the metric/log label of the kind.
func (k DecisionKind) String() string {
	switch k {
	case Allow:
		return "allow"
	case DenyNoToken:
		return "deny_no_token"
	case DenyInvalidToken:
		return "deny_invalid_token"
	case DenyNotOwner:
		return "deny_not_owner"
	case DenyUserNotFound:
		return "deny_user_not_found"
	default:
		return "unknown"
	}
}

// Message is the client-facing explanation of a deny.
func (k DecisionKind) Message() string {
	switch k {
	case Allow:
		return ""
	case DenyNoToken:
		return "must provide a token"
	case DenyInvalidToken:
		return "session expired invalid token"
	case DenyNotOwner:
		return "only the owner can modify this movie"
	case DenyUserNotFound:
		return "user not found"
	default:
		return "unauthorized"
	}
}

// Decision is the result of Gate.Authorize. UserID is set whenever the token
// resolved to a user, including DenyNotOwner and DenyInvalidToken.
type Decision struct {
	Kind   DecisionKind
	UserID uint64
}

// Allowed reports whether the caller may proceed.
func (d Decision) Allowed() bool { return d.Kind == Allow }
