package domain

import "time"

// User is the identity record returned by the auth endpoints.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email,omitempty"`
	FirstName      string    `json:"first_name,omitempty"`
	LastName       string    `json:"last_name,omitempty"`
	IsGuest        bool      `json:"is_guest"`
	GoogleID       string    `json:"google_id,omitempty"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// DisplayName picks the friendliest available label for the user.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Email != "":
		return u.Email
	}
	return u.Username
}

// Session is the locally persisted credential set for one profile.
type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	User         *User     `json:"user,omitempty"`
	SavedAt      time.Time `json:"savedAt"`
}
