package models

import "strings"

// User is the profile returned by the identity provider for the signed-in person.
type User struct {
	ID            string `json:"id"` // Google subject or Firebase UID
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture,omitempty"`
	VerifiedEmail bool   `json:"verified_email,omitempty"`
}

// Member returns the public identity used for trip membership and message senders.
func (u User) Member() Member {
	return Member{Email: NormalizeEmail(u.Email), Name: u.DisplayName(), Picture: u.Picture}
}

// DisplayName falls back to the local part of the e-mail when the provider sent no name.
func (u User) DisplayName() string {
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	return "Someone"
}

// Member is the {email, name, picture} triple stored on trips.
type Member struct {
	Email   string `json:"email" firestore:"email"`
	Name    string `json:"name" firestore:"name"`
	Picture string `json:"picture,omitempty" firestore:"picture"`
}

// NormalizeEmail lower-cases and trims an address so it can be used as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
