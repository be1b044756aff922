package types

// UserProfile is the signed-in user as reported by GET /auth/me.
type UserProfile struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Sub   string `json:"sub"`
}
