package user

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

type Principal struct {
	UserID string
	Email  string
	Role   Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
