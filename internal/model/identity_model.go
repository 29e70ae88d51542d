package model

import "time"

type Identity struct {
	Id        string    `gorm:"type:text;primaryKey"`
	Kind      string    `gorm:"type:varchar(16);not null"`
	LinkedTo  *string   `gorm:"type:text;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Identity) TableName() string {
	return "identities"
}
