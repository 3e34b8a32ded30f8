// Файл: internal/entities/user_entity.go
package entities

import (
	"database/sql"
	"slices"

	"crf-system/pkg/types"
)

type User struct {
	ID           uint64   `json:"id" db:"id"`
	Fio          string   `json:"fio" db:"fio"`
	Email        string   `json:"email" db:"email"`
	NationalID   string   `json:"national_id" db:"national_id"`
	Designation  string   `json:"designation" db:"designation"`
	DepartmentID uint64   `json:"department_id" db:"department_id"`
	Roles        []string `json:"roles" db:"-"`

	TelegramChatID sql.NullInt64 `json:"telegram_chat_id,omitempty" db:"telegram_chat_id"`

	types.BaseEntity
}

func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

func (u *User) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if u.HasRole(r) {
			return true
		}
	}
	return false
}
