package student

import (
	"context"
	"log/slog"

	errors "github.com/bhs-school/fee-payments/internal"
	studentmodel "github.com/bhs-school/fee-payments/internal/core/datamodel/student"
)

type RepositoryAPI interface {
	GetByID(ctx context.Context, id string) (*studentmodel.Student, error)
	Upsert(ctx context.Context, s *studentmodel.Student) error
	Count(ctx context.Context) (int64, error)
}

var ErrStudentNotFound = errors.NewNotFoundError("student not found", errors.ErrCodeStudentNotFound)

// Directory answers whether a student can be billed.
type Directory struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewDirectory(repo RepositoryAPI, logger *slog.Logger) *Directory {
	return &Directory{repo: repo, logger: logger}
}

// Lookup returns the student when they exist and are active. Unknown and
// inactive students are validation errors on student_id.
func (d *Directory) Lookup(ctx context.Context, studentID string) (*studentmodel.Student, error) {
	s, err := d.repo.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			d.logger.Info("fee payment for unknown student", "student_id", studentID)
			return nil, errors.NewValidationFieldError("student_id", "unknown student", errors.ErrCodeUnknownStudent)
		}
		d.logger.Error("failed to load student", "student_id", studentID, "error", err)
		return nil, errors.NewPersistenceError("could not load student", errors.ErrCodeStoreFailure, err)
	}

	if !s.IsActive {
		d.logger.Info("fee payment for inactive student", "student_id", studentID)
		return nil, errors.NewValidationFieldError("student_id", "student is not enrolled", errors.ErrCodeInactiveStudent)
	}

	return s, nil
}
