package domain

import "time"

type Category struct {
	ID         int64
	Label      string
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	IsArchived bool
}

func NewCategory(label string) *Category {
	return &Category{Label: label}
}
