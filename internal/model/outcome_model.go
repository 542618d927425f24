package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Outcome struct {
	Id          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex"` // 1:1 with session
	Status      string         `gorm:"type:text;not null"`
	Summary     string         `gorm:"type:text;not null"`
	NextActions datatypes.JSON `gorm:"type:jsonb;not null"`
	Confidence  *float64       `gorm:""`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
}

func (Outcome) TableName() string {
	return "outcomes"
}
