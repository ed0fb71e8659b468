package domain

// ============================================================
// Roles & auth API
// ============================================================

// Role is an application role carried in the access-token claims.
type Role string

const (
	RoleAgent            Role = "AGENT"
	RoleOperateur        Role = "OPERATEUR"
	RoleChefService      Role = "CHEF_SERVICE"
	RoleDirecteur        Role = "DIRECTEUR"
	RoleDG               Role = "DG"
	RoleCB               Role = "CB"
	RoleSAF              Role = "SAF"
	RoleDAAF             Role = "DAAF"
	RoleSDCT             Role = "SDCT"
	RoleTresorerie       Role = "TRESORERIE"
	RoleAgentComptable   Role = "AGENT_COMPTABLE"
	RoleCommissionMarche Role = "COMMISSION_MARCHES"
	RoleAdmin            Role = "ADMIN"
)

// Actor is the authenticated caller extracted from the token by the
// auth middleware. Admin bypass is decided from these claims only.
type Actor struct {
	UserID      string `json:"user_id"`
	Roles       []Role `json:"roles"`
	DirectionID string `json:"direction_id,omitempty"`
}

// HasRole reports whether the actor carries the given role.
func (a Actor) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the actor carries at least one of the roles.
func (a Actor) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if a.HasRole(r) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the actor carries the ADMIN role.
func (a Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

// TokenRequest is the payload for POST /v1/auth/token.
type TokenRequest struct {
	UserID      string `json:"user_id"`
	Roles       []Role `json:"roles"`
	DirectionID string `json:"direction_id,omitempty"`
}

// TokenResponse is returned by POST /v1/auth/token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
