package repository

import (
	"context"
	"strings"
	"time"

	"crimewatch/internal/models"

	"gorm.io/gorm"
)

// ReportRepo persists reports. Every lookup that can be driven by a request is
// scoped by owner in the same query, so foreign and missing ids look alike.
type ReportRepo struct {
	db *gorm.DB
}

func NewReportRepo(db *gorm.DB) *ReportRepo {
	return &ReportRepo{db: db}
}

// Transaction runs fn with a repository bound to a single database transaction.
func (r *ReportRepo) Transaction(ctx context.Context, fn func(tx *ReportRepo) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ReportRepo{db: tx})
	})
}

func (r *ReportRepo) Create(ctx context.Context, report *models.Report) error {
	return r.db.WithContext(ctx).Omit("User").Create(report).Error
}

// Update overwrites every mutable column of report. It never inserts: a row
// that vanished or changed owner yields gorm.ErrRecordNotFound. created_at is
// not part of the update.
func (r *ReportRepo) Update(ctx context.Context, report *models.Report) error {
	if report.UpdatedAt.IsZero() {
		report.UpdatedAt = time.Now()
	}
	res := r.db.WithContext(ctx).Model(&models.Report{}).
		Where("id = ? AND user_id = ?", report.ID, report.UserID).
		Updates(map[string]any{
			"title":       report.Title,
			"description": report.Description,
			"location":    report.Location,
			"photo":       report.Photo,
			"video":       report.Video,
			"updated_at":  report.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetForOwner returns gorm.ErrRecordNotFound unless id exists and belongs to ownerID.
func (r *ReportRepo) GetForOwner(ctx context.Context, ownerID, id uint) (*models.Report, error) {
	var report models.Report
	err := r.db.WithContext(ctx).Preload("User").
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// GetByID loads any report regardless of owner. It is for administrative tooling only.
func (r *ReportRepo) GetByID(ctx context.Context, id uint) (*models.Report, error) {
	var report models.Report
	if err := r.db.WithContext(ctx).Preload("User").First(&report, id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

// ListForOwner returns ownerID's reports newest first. A non-empty location
// keeps only reports whose location contains it, ignoring case. The match runs
// in Go because sqlite's LOWER folds ASCII letters only.
func (r *ReportRepo) ListForOwner(ctx context.Context, ownerID uint, location string) ([]models.Report, error) {
	var reports []models.Report
	err := r.db.WithContext(ctx).Preload("User").
		Where("user_id = ?", ownerID).
		Order("created_at DESC").Order("id DESC").
		Find(&reports).Error
	if err != nil || location == "" {
		return reports, err
	}

	needle := strings.ToLower(location)
	matched := reports[:0]
	for _, report := range reports {
		if strings.Contains(strings.ToLower(report.Location), needle) {
			matched = append(matched, report)
		}
	}
	return matched, nil
}

// DeleteForOwner removes the report and returns it, or gorm.ErrRecordNotFound when nothing matched.
func (r *ReportRepo) DeleteForOwner(ctx context.Context, ownerID, id uint) (*models.Report, error) {
	var deleted *models.Report
	err := r.Transaction(ctx, func(tx *ReportRepo) error {
		report, err := tx.GetForOwner(ctx, ownerID, id)
		if err != nil {
			return err
		}
		res := tx.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.Report{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		deleted = report
		return nil
	})
	return deleted, err
}
