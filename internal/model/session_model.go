package model

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	Id        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerId   uuid.UUID  `gorm:"type:uuid;not null;index"` // owner scoping for data isolation
	Topic     string     `gorm:"type:text;not null"`
	Status    string     `gorm:"type:text;not null;index"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	EndedAt   *time.Time `gorm:""`
}

func (Session) TableName() string {
	return "sessions"
}
