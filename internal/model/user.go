package model

import "time"

type Role string

const (
	RoleCitizen Role = "citizen"
	RoleWorker  Role = "worker"
	RoleAdmin   Role = "admin"
)

// CanUpdateTimeline reports whether the role may submit worker updates
// (status change + notes + attachments) on a complaint.
func (r Role) CanUpdateTimeline() bool {
	return r == RoleWorker || r == RoleAdmin
}

// CanSetStatus reports whether the role may change a complaint's status
// directly, without a timeline note.
func (r Role) CanSetStatus() bool {
	return r == RoleAdmin
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserPublic struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}
