package model

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the authenticated account behind a session.
type User struct {
	ID        string `json:"id" db:"id"`
	Username  string `json:"username" db:"username"`
	Email     string `json:"email,omitempty" db:"email"`
	AvatarURL string `json:"avatar_url,omitempty" db:"avatar_url"`
	Role      string `json:"role" db:"role"`
}

// IsAdmin reports whether the user may create accounts.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
