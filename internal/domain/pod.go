package domain

import "time"

type Pod struct {
	ID             string    `gorm:"primaryKey;size:64" json:"id"`
	Name           string    `gorm:"size:128;not null" json:"name"`
	Address        string    `gorm:"size:512" json:"address"`
	DeviceID       string    `gorm:"size:64" json:"-"`
	PricePerMinute float64   `gorm:"not null" json:"price_per_minute"`
	InUse          bool      `gorm:"not null;default:false" json:"in_use"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
