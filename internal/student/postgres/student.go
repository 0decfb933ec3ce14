package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	errors "github.com/bhs-school/fee-payments/internal"
	studentmodel "github.com/bhs-school/fee-payments/internal/core/datamodel/student"
	studentpkg "github.com/bhs-school/fee-payments/internal/student"
)

type StudentRepository struct {
	db *gorm.DB
}

func NewStudentRepository(db *gorm.DB) studentpkg.RepositoryAPI {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) GetByID(ctx context.Context, id string) (*studentmodel.Student, error) {
	var s studentmodel.Student
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, studentpkg.ErrStudentNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Upsert inserts the student or refreshes name, class and enrolment.
func (r *StudentRepository) Upsert(ctx context.Context, s *studentmodel.Student) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "class_name", "is_active"}),
	}).Create(s).Error
}

func (r *StudentRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&studentmodel.Student{}).Count(&n).Error
	return n, err
}
