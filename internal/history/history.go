/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package history persists what the daemon served so operators can answer
// "what played last night" without scraping logs.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/friendsincode/bragi/internal/events"
)

// PlayRecord is one served track.
type PlayRecord struct {
	ID       string    `gorm:"primaryKey" json:"id"`
	Path     string    `gorm:"index" json:"path"`
	Kind     string    `json:"kind"`   // "playlist" or "special"
	Source   string    `json:"source"` // playlist name or special category
	PlayedAt time.Time `gorm:"index" json:"played_at"`
}

// Open connects the SQLite history database and migrates the schema.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&PlayRecord{}); err != nil {
		return nil, err
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Service records served tracks by following bus events.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
}

// NewService creates the play history recorder.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Start consumes now-playing events until ctx ends.
func (s *Service) Start(ctx context.Context) {
	nowPlaying := s.bus.Subscribe(events.EventNowPlaying)
	defer s.bus.Unsubscribe(events.EventNowPlaying, nowPlaying)

	s.logger.Info().Msg("play history recorder started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("play history recorder stopping")
			return
		case payload := <-nowPlaying:
			s.record(payload)
		}
	}
}

func (s *Service) record(payload events.Payload) {
	entry := PlayRecord{
		ID:       uuid.NewString(),
		PlayedAt: time.Now(),
	}
	if path, ok := payload["path"].(string); ok {
		entry.Path = path
	}
	if kind, ok := payload["kind"].(string); ok {
		entry.Kind = kind
	}
	if source, ok := payload["source"].(string); ok {
		entry.Source = source
	}

	if err := s.db.Create(&entry).Error; err != nil {
		s.logger.Error().Err(err).Str("path", entry.Path).Msg("recording play failed")
	}
}

// Recent returns the newest records, most recent first.
func Recent(db *gorm.DB, limit int) ([]PlayRecord, error) {
	var records []PlayRecord
	err := db.Order("played_at DESC").Limit(limit).Find(&records).Error
	return records, err
}
