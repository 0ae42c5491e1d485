package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mindmap-dev/mindmap/internal/models"
	"gorm.io/gorm"
)

// ContentService stores reports and constellations. Every call is scoped to
// the authenticated user.
type ContentService struct {
	db *gorm.DB
}

func NewContentService(db *gorm.DB) *ContentService {
	return &ContentService{db: db}
}

func (s *ContentService) SubmitReport(ctx context.Context, userID uint, content string) (*models.Report, error) {
	if userID == 0 || strings.TrimSpace(content) == "" {
		return nil, ErrMissingFields
	}

	report := models.Report{
		UserID:        userID,
		ReportContent: content,
	}

	if err := s.db.WithContext(ctx).Create(&report).Error; err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	return &report, nil
}

func (s *ContentService) SaveConstellation(ctx context.Context, userID uint, name string, data json.RawMessage) (*models.Constellation, error) {
	if userID == 0 || strings.TrimSpace(name) == "" || isEmptyJSON(data) {
		return nil, ErrMissingFields
	}

	payload, err := serialize(data)

	if err != nil {
		return nil, err
	}

	constellation := models.Constellation{
		UserID:            userID,
		Name:              name,
		ConstellationData: payload,
	}

	if err := s.db.WithContext(ctx).Create(&constellation).Error; err != nil {
		return nil, fmt.Errorf("failed to save constellation: %w", err)
	}

	return &constellation, nil
}

// UpdateConstellation rewrites name and data of one of the user's
// constellations. A missing id, or one owned by someone else, leaves the
// table untouched and returns ErrConstellationNotFound.
func (s *ContentService) UpdateConstellation(ctx context.Context, userID, id uint, name string, data json.RawMessage) error {
	if userID == 0 || id == 0 || strings.TrimSpace(name) == "" || isEmptyJSON(data) {
		return ErrMissingFields
	}

	payload, err := serialize(data)

	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Model(&models.Constellation{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{
			"name":               name,
			"constellation_data": payload,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update constellation: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		// MySQL reports zero affected rows when the values are unchanged, so
		// tell "no such row" apart from "nothing to change".
		exists, err := s.exists(ctx, userID, id)

		if err != nil {
			return err
		}

		if !exists {
			return ErrConstellationNotFound
		}
	}

	return nil
}

// ListConstellations returns the user's constellations, newest first.
func (s *ContentService) ListConstellations(ctx context.Context, userID uint) ([]models.Constellation, error) {
	constellations := []models.Constellation{}

	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&constellations).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list constellations: %w", err)
	}

	return constellations, nil
}

func (s *ContentService) GetConstellation(ctx context.Context, userID, id uint) (*models.Constellation, error) {
	var constellation models.Constellation

	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&constellation).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConstellationNotFound
		}
		return nil, fmt.Errorf("failed to fetch constellation: %w", err)
	}

	return &constellation, nil
}

func (s *ContentService) exists(ctx context.Context, userID, id uint) (bool, error) {
	var count int64

	err := s.db.WithContext(ctx).
		Model(&models.Constellation{}).
		Where("id = ? AND user_id = ?", id, userID).
		Count(&count).Error

	if err != nil {
		return false, fmt.Errorf("failed to look up constellation: %w", err)
	}

	return count > 0, nil
}

func isEmptyJSON(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func serialize(data json.RawMessage) (models.RawJSON, error) {
	if !json.Valid(data) {
		return nil, ErrInvalidData
	}

	return models.RawJSON(bytes.TrimSpace(data)), nil
}
