package models

// AuthTokens is the bearer token pair issued to admins.
type AuthTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginRequest carries admin credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Identity is the admin described by an access token.
type Identity struct {
	ID    string
	Email string
}
