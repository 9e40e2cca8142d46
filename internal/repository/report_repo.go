package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/marking-hub-api/internal/models"
)

// ReportFilter narrows report audit queries.
type ReportFilter struct {
	UserID   *uint
	Category string
}

// ReportRepository persists the audit log of dispatched reports.
type ReportRepository interface {
	Create(ctx context.Context, report *models.StudentReport) error
	List(ctx context.Context, filter ReportFilter) ([]models.StudentReport, error)
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository constructs a report repository.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *models.StudentReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *reportRepository) List(ctx context.Context, filter ReportFilter) ([]models.StudentReport, error) {
	query := r.db.WithContext(ctx).Model(&models.StudentReport{})

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}

	var reports []models.StudentReport
	if err := query.Order("sent_at DESC").Find(&reports).Error; err != nil {
		return nil, err
	}

	return reports, nil
}
