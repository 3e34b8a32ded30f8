package entities

import "crf-system/pkg/types"

type Department struct {
	ID   uint64 `json:"id" db:"id"`
	Code string `json:"code" db:"code"`
	Name string `json:"name" db:"name"`

	types.BaseEntity
}

type Category struct {
	ID   uint64 `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	// Заявки этой категории проходят через заместителя директора
	RequiresDeputyApproval bool `json:"requires_deputy_approval" db:"requires_deputy_approval"`

	types.BaseEntity
}

type Factor struct {
	ID         uint64 `json:"id" db:"id"`
	CategoryID uint64 `json:"category_id" db:"category_id"`
	Name       string `json:"name" db:"name"`

	types.BaseEntity
}
