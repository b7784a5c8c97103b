package models

// APIClaims are the claims of the bearer token accepted on the job
// endpoint when token auth is enabled.
type APIClaims struct {
	Issuer    string `json:"iss"` // optional
	Subject   string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}
