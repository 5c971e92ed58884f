package model

import "time"

// Preference is one key/value pair of a flat preferences namespace.
type Preference struct {
	Namespace string `gorm:"primaryKey"`
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}
