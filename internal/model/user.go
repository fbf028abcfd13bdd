package model

import (
	"errors"
	"time"

	"github.com/eleven-am/todoapi/internal/orm"
)

// Role controls how many todos a user may hold
type Role string

const (
	RoleCommon  Role = "COMMON"
	RolePremium Role = "PREMIUM"
	RoleAdmin   Role = "ADMIN"
)

// ErrUserNotFound reports that no account matches a lookup
var ErrUserNotFound = errors.New("user not found")

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleCommon, RolePremium, RoleAdmin:
		return true
	}
	return false
}

// User represents a registered account
type User struct {
	_ struct{} `dbdef:"table:users;index:idx_users_role,role;check:chk_users_role,role IN ('COMMON', 'PREMIUM', 'ADMIN')"`

	ID           string    `db:"id" dbdef:"type:uuid;primary_key"`
	Email        string    `db:"email" dbdef:"type:varchar(255);not_null;unique"`
	Password     string    `db:"password_hash" json:"-" dbdef:"type:varchar(255);not_null"`
	UserName     string    `db:"user_name" dbdef:"type:varchar(100);not_null"`
	Role         Role      `db:"role" dbdef:"type:varchar(20);not_null;default:'COMMON'"`
	ProfileImage *string   `db:"profile_image" dbdef:"type:varchar(512)"`
	CreatedAt    time.Time `db:"join_date" dbdef:"type:timestamptz;not_null;default:now()"`
}

// UserColumns provides typed column references for the users table
type UserColumns struct {
	ID           orm.Column[string]
	Email        orm.StringColumn
	UserName     orm.StringColumn
	Role         orm.Column[Role]
	ProfileImage orm.Column[*string]
	CreatedAt    orm.TimeColumn
}

// Users is the column set used to build user queries
var Users = UserColumns{
	ID:           orm.Column[string]{Name: "id", Table: "users"},
	Email:        orm.StringColumn{Column: orm.Column[string]{Name: "email", Table: "users"}},
	UserName:     orm.StringColumn{Column: orm.Column[string]{Name: "user_name", Table: "users"}},
	Role:         orm.Column[Role]{Name: "role", Table: "users"},
	ProfileImage: orm.Column[*string]{Name: "profile_image", Table: "users"},
	CreatedAt:    orm.TimeColumn{Column: orm.Column[time.Time]{Name: "join_date", Table: "users"}},
}

// UserMetadata maps User onto the users table
var UserMetadata = &orm.ModelMetadata{
	TableName:  "users",
	PrimaryKey: "id",
	Columns:    []string{"id", "email", "password_hash", "user_name", "role", "profile_image", "join_date"},
}
