package models

// Identity is the profile returned by an identity provider. It lives in the
// session cookie and the one-time token cache, never in the database.
type Identity struct {
	Sub      string `json:"sub"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Picture  string `json:"picture,omitempty"`
	Provider string `json:"provider"`
}

// IsZero reports whether no identity is present
func (i *Identity) IsZero() bool {
	return i == nil || (i.Sub == "" && i.Email == "")
}

// Me is the /auth/me response
type Me struct {
	Identity
	IsAdmin bool `json:"is_admin"`
}
