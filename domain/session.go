package domain

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Session is the identity observed by this process. Token is kept even when the
// identity could not be confirmed, so Authenticated is the only reliable signal.
type Session struct {
	Token         string `json:"-"`
	User          *User  `json:"user,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegistrationProfile struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
