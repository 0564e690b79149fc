package models

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Setting is one row of the key-value preference table
type Setting struct {
	Key       string    `gorm:"primaryKey;type:varchar(128)" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the default table name
func (Setting) TableName() string {
	return "preferences"
}

// SetupModels runs the schema migrations
func SetupModels(db *gorm.DB) error {
	if err := db.AutoMigrate(&Event{}, &Setting{}); err != nil {
		return errors.Wrap(err, "failed to migrate models")
	}
	return nil
}
