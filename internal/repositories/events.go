package repositories

import (
	"context"

	"example.com/eventwave/internal/geo"
	"example.com/eventwave/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// refreshColumns are overwritten when a refresh merges an event that is
// already stored. favorite is deliberately absent.
var refreshColumns = []string{
	"title",
	"description",
	"image_url",
	"category",
	"venue_name",
	"latitude",
	"longitude",
	"start_date",
}

// EventFilter narrows an event query. Zero value matches everything.
type EventFilter struct {
	Category      string
	FavoritesOnly bool
	Area          *geo.BoundingBox
}

// EventQuery is a read re-run by Watch after every change
type EventQuery func(ctx context.Context) ([]models.Event, error)

// EventRepository defines the interface for the local event store
type EventRepository interface {
	GetAll(ctx context.Context) ([]models.Event, error)
	GetFavorites(ctx context.Context) ([]models.Event, error)
	GetByCategory(ctx context.Context, category string) ([]models.Event, error)
	GetInArea(ctx context.Context, box geo.BoundingBox) ([]models.Event, error)
	GetFavoritesInArea(ctx context.Context, box geo.BoundingBox) ([]models.Event, error)
	GetByCategoryInArea(ctx context.Context, category string, box geo.BoundingBox) ([]models.Event, error)
	Find(ctx context.Context, filter EventFilter) ([]models.Event, error)
	GetByID(ctx context.Context, id string) (*models.Event, error)
	InsertAll(ctx context.Context, events []models.Event) error
	ReplaceAll(ctx context.Context, events []models.Event) error
	Update(ctx context.Context, event *models.Event) error
	DeleteAll(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
	Subscribe() (<-chan struct{}, func())
	Watch(ctx context.Context, query EventQuery) <-chan []models.Event
}

// eventRepository implements EventRepository
type eventRepository struct {
	db      *gorm.DB
	changes *changeFeed
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{
		db:      db,
		changes: newChangeFeed(),
	}
}

// GetAll returns every stored event
func (r *eventRepository) GetAll(ctx context.Context) ([]models.Event, error) {
	return r.Find(ctx, EventFilter{})
}

// GetFavorites returns events flagged as favorite
func (r *eventRepository) GetFavorites(ctx context.Context) ([]models.Event, error) {
	return r.Find(ctx, EventFilter{FavoritesOnly: true})
}

// GetByCategory returns events with an exact category match
func (r *eventRepository) GetByCategory(ctx context.Context, category string) ([]models.Event, error) {
	return r.Find(ctx, EventFilter{Category: category})
}

// GetInArea returns events whose position lies inside box
func (r *eventRepository) GetInArea(ctx context.Context, box geo.BoundingBox) ([]models.Event, error) {
	return r.Find(ctx, EventFilter{Area: &box})
}

// GetFavoritesInArea returns favorite events inside box
func (r *eventRepository) GetFavoritesInArea(ctx context.Context, box geo.BoundingBox) ([]models.Event, error) {
	return r.Find(ctx, EventFilter{FavoritesOnly: true, Area: &box})
}

// GetByCategoryInArea returns events of one category inside box
func (r *eventRepository) GetByCategoryInArea(ctx context.Context, category string, box geo.BoundingBox) ([]models.Event, error) {
	return r.Find(ctx, EventFilter{Category: category, Area: &box})
}

// Find runs a filtered query ordered by start date
func (r *eventRepository) Find(ctx context.Context, filter EventFilter) ([]models.Event, error) {
	query := r.db.WithContext(ctx).Model(&models.Event{})

	if filter.FavoritesOnly {
		query = query.Where("favorite = ?", true)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if box := filter.Area; box != nil {
		query = query.Where("latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?",
			box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	}

	var events []models.Event
	if err := query.Order("start_date ASC").Order("id ASC").Find(&events).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query events")
	}
	return events, nil
}

// GetByID finds an event by id
func (r *eventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		if IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to get event %s", id)
	}
	return &event, nil
}

// InsertAll upserts events, replacing every column of existing rows
func (r *eventRepository) InsertAll(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&events).Error
	if err != nil {
		return errors.Wrap(err, "failed to insert events")
	}
	r.changes.publish()
	return nil
}

// ReplaceAll makes the stored set equal to events, keeping the favorite flag
// of rows that survive. Runs in a single transaction.
func (r *eventRepository) ReplaceAll(ctx context.Context, events []models.Event) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if len(events) > 0 {
			stale = tx.Where("id NOT IN ?", models.IDs(events))
		}
		if err := stale.Delete(&models.Event{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete stale events")
		}

		if len(events) == 0 {
			return nil
		}

		// favorite is only written on first insert
		fresh := make([]models.Event, len(events))
		copy(fresh, events)
		for i := range fresh {
			fresh[i].Favorite = false
		}

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(refreshColumns),
		}).Create(&fresh).Error
		return errors.Wrap(err, "failed to upsert events")
	})
	if err != nil {
		return err
	}
	r.changes.publish()
	return nil
}

// Update overwrites the stored row with the same id
func (r *eventRepository) Update(ctx context.Context, event *models.Event) error {
	result := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", event.ID).
		Select("*").
		Updates(event)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to update event %s", event.ID)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	r.changes.publish()
	return nil
}

// DeleteAll empties the event table
func (r *eventRepository) DeleteAll(ctx context.Context) error {
	err := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.Event{}).Error
	if err != nil {
		return errors.Wrap(err, "failed to delete events")
	}
	r.changes.publish()
	return nil
}

// Count returns the number of stored events
func (r *eventRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Event{}).Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "failed to count events")
	}
	return count, nil
}

// Subscribe returns a channel signalled after every successful mutation.
// Signals coalesce: a slow reader sees one pending signal, not a backlog.
func (r *eventRepository) Subscribe() (<-chan struct{}, func()) {
	return r.changes.subscribe()
}

// Watch emits the query result immediately and again after every change,
// until ctx is done. Failed queries are skipped.
func (r *eventRepository) Watch(ctx context.Context, query EventQuery) <-chan []models.Event {
	out := make(chan []models.Event, 1)
	changed, cancel := r.changes.subscribe()

	go func() {
		defer close(out)
		defer cancel()

		emit := func() bool {
			events, err := query(ctx)
			if err != nil {
				return ctx.Err() == nil
			}
			select {
			case out <- events:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
				if !emit() {
					return
				}
			}
		}
	}()

	return out
}
