package geo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const officeSettingsKey = "settings:office"

// RedisSettings persists the office configuration in a redis hash so every
// instance sees runtime updates immediately. Until the hash is written the
// fallback office applies, so an env-configured office survives the switch to
// redis-backed settings.
type RedisSettings struct {
	client   *redis.Client
	fallback Office
}

// RedisSettingsOption configures a RedisSettings.
type RedisSettingsOption func(*RedisSettings)

// WithOfficeFallback sets the office returned (and used to fill missing
// fields) while the redis hash is empty.
func WithOfficeFallback(office Office) RedisSettingsOption {
	return func(s *RedisSettings) {
		s.fallback = office
	}
}

// NewRedisSettings constructs redis-backed office settings.
func NewRedisSettings(client *redis.Client, opts ...RedisSettingsOption) *RedisSettings {
	s := &RedisSettings{
		client:   client,
		fallback: DefaultOffice(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisSettings) Office(ctx context.Context) (Office, error) {
	fields, err := s.client.HGetAll(ctx, officeSettingsKey).Result()
	if err != nil {
		return Office{}, fmt.Errorf("load office settings: %w", err)
	}
	return officeFromFields(fields, s.fallback), nil
}

// officeFromFields merges the stored hash fields over the fallback office.
func officeFromFields(fields map[string]string, fallback Office) Office {
	office := fallback
	if v, err := strconv.ParseFloat(fields["latitude"], 64); err == nil {
		office.Latitude = v
	}
	if v, err := strconv.ParseFloat(fields["longitude"], 64); err == nil {
		office.Longitude = v
	}
	if v, err := strconv.ParseFloat(fields["radius_meters"], 64); err == nil && v > 0 {
		office.RadiusMeters = v
	}
	return office
}

func (s *RedisSettings) SetOffice(ctx context.Context, office Office) error {
	err := s.client.HSet(ctx, officeSettingsKey,
		"latitude", strconv.FormatFloat(office.Latitude, 'f', -1, 64),
		"longitude", strconv.FormatFloat(office.Longitude, 'f', -1, 64),
		"radius_meters", strconv.FormatFloat(office.RadiusMeters, 'f', -1, 64),
	).Err()
	if err != nil {
		return fmt.Errorf("save office settings: %w", err)
	}
	return nil
}
