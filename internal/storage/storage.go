package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"incidenbot/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	// ChangesChannel carries the collection version after every write.
	ChangesChannel = "incidents:changed"
	versionKey     = "incidents:version"
)

// ErrNotFound is returned when an incident id matches no row.
var ErrNotFound = errors.New("incident not found")

// Storage is the persistence client used by the rest of the service.
// Incidents are append-only: there is deliberately no delete operation.
type Storage interface {
	InsertIncident(ctx context.Context, incident *models.Incident) (string, error)
	UpdateIncidentStatus(ctx context.Context, id string, status models.Status, now time.Time) error
	ListIncidents(ctx context.Context) ([]models.Incident, error)
	GetIncident(ctx context.Context, id string) (*models.Incident, error)

	PublishChange(ctx context.Context) (int64, error)
	CurrentVersion(ctx context.Context) (int64, error)
	SubscribeChanges(ctx context.Context) *redis.PubSub
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// Migrate creates or updates the incidents table.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(&models.Incident{})
}

// InsertIncident зберігає новий інцидент; ID призначається хуком BeforeCreate.
func (s *Service) InsertIncident(ctx context.Context, incident *models.Incident) (string, error) {
	if incident.ID != "" {
		return "", fmt.Errorf("incident already has id %s", incident.ID)
	}
	if err := s.DB.WithContext(ctx).Create(incident).Error; err != nil {
		log.Printf("ERROR: Failed to insert incident for room %s: %v", incident.Room, err)
		return "", err
	}

	s.publishAfterWrite(ctx)
	return incident.ID, nil
}

// UpdateIncidentStatus applies a partial update of the mutable fields.
// resolved_at is only written on a transition into resolved; reopening an
// incident leaves the previous value in place.
func (s *Service) UpdateIncidentStatus(ctx context.Context, id string, status models.Status, now time.Time) error {
	result := s.DB.WithContext(ctx).Model(&models.Incident{}).
		Where("id = ?", id).
		Updates(StatusUpdates(status, now))
	if result.Error != nil {
		log.Printf("ERROR: Failed to update status of incident %s: %v", id, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	s.publishAfterWrite(ctx)
	return nil
}

// StatusUpdates builds the column set written by a status change.
func StatusUpdates(status models.Status, now time.Time) map[string]interface{} {
	updates := map[string]interface{}{
		"status":         string(status),
		"updated_at":     now,
		"status_history": gorm.Expr("array_append(status_history, ?)", models.HistoryEntry(status, now)),
	}
	if status == models.StatusResolved {
		updates["resolved_at"] = now
	}
	return updates
}

// ListIncidents returns the whole collection, newest first.
func (s *Service) ListIncidents(ctx context.Context) ([]models.Incident, error) {
	var incidents []models.Incident
	if err := s.DB.WithContext(ctx).Order("created_at desc").Find(&incidents).Error; err != nil {
		log.Printf("ERROR: Failed to list incidents: %v", err)
		return nil, err
	}
	return incidents, nil
}

func (s *Service) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	var incident models.Incident
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&incident).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

// PublishChange bumps the collection version in Redis and announces it on
// ChangesChannel so every instance reloads its snapshot.
func (s *Service) PublishChange(ctx context.Context) (int64, error) {
	version, err := s.Redis.Incr(ctx, versionKey).Result()
	if err != nil {
		return 0, err
	}
	if err := s.Redis.Publish(ctx, ChangesChannel, strconv.FormatInt(version, 10)).Err(); err != nil {
		return 0, err
	}
	return version, nil
}

// CurrentVersion returns the last published collection version (0 before any write).
func (s *Service) CurrentVersion(ctx context.Context) (int64, error) {
	v, err := s.Redis.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (s *Service) SubscribeChanges(ctx context.Context) *redis.PubSub {
	return s.Redis.Subscribe(ctx, ChangesChannel)
}

// publishAfterWrite never fails the write itself: the row is committed and
// live clients catch up on the next change.
func (s *Service) publishAfterWrite(ctx context.Context) {
	if s.Redis == nil {
		return
	}
	if _, err := s.PublishChange(ctx); err != nil {
		log.Printf("WARNING: Failed to publish incidents change: %v", err)
	}
}
