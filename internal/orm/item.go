package orm

import "time"

// Item is one key of the console's local storage.
type Item struct {
	Name      string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}
