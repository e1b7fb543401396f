package models

// UserRole 用户角色
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// User 当前操作用户。Username 对学生是 13 位学号，对教师是 8 位工号。
type User struct {
	ID       int64    `db:"id" json:"id"`
	Username string   `db:"username" json:"username"`
	RealName string   `db:"real_name" json:"realName"`
	Role     UserRole `db:"role" json:"role"`
	Unit     string   `db:"unit" json:"unit"`
	IsActive bool     `db:"is_active" json:"isActive"`
}

// UserAction user_logs 表中的操作日志
type UserAction struct {
	UserID    int64  `db:"user_id"`
	Action    string `db:"action"`
	Details   string `db:"details"`
	IPAddress string `db:"ip_address"`
	UserAgent string `db:"user_agent"`
}
