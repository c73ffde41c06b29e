package model

import (
	"time"
)

type Test struct {
	ID               uint       `gorm:"primarykey" json:"id"`
	Company          string     `json:"company" gorm:"size:100;not null;index"`
	Year             int        `json:"year" gorm:"not null;index"`
	PatternData      string     `json:"pattern_data,omitempty" gorm:"type:text"`
	TimeLimitMinutes int        `json:"time_limit_minutes" gorm:"not null;default:60"`
	Questions        []Question `json:"questions,omitempty" gorm:"foreignKey:TestID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt        time.Time  `json:"created_at" gorm:"index"`
}
