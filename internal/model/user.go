package model

import "time"

// User is owned by the account layer; this service only reads it.
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Email     string    `json:"email" gorm:"size:255;not null;uniqueIndex"`
	Name      string    `json:"name" gorm:"size:100"`
	Year      int       `json:"year"`
	Branch    string    `json:"branch" gorm:"size:100"`
	IsAdmin   bool      `json:"is_admin" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
