package repositories

import (
	"context"

	"example.com/eventwave/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepository is a string key-value table used for preferences
type SettingRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

type settingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new setting repository
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db: db}
}

// Get returns the raw value for key, or ErrNotFound
func (r *settingRepository) Get(ctx context.Context, key string) (string, error) {
	var setting models.Setting
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if err != nil {
		if IsRecordNotFoundError(err) {
			return "", ErrNotFound
		}
		return "", errors.Wrapf(err, "failed to get setting %s", key)
	}
	return setting.Value, nil
}

// Set writes value under key, replacing any previous value
func (r *settingRepository) Set(ctx context.Context, key, value string) error {
	setting := models.Setting{Key: key, Value: value}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&setting).Error
	return errors.Wrapf(err, "failed to set setting %s", key)
}

// Delete removes keys. Missing keys are ignored.
func (r *settingRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Where("key IN ?", keys).Delete(&models.Setting{}).Error
	return errors.Wrap(err, "failed to delete settings")
}
