package subjectrepo

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tutorpay/internal/pg"
)

// Repository reads the teacher/subject pairs maintained by the profile service.
type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) Teaches(ctx context.Context, teacherID, subjectID uuid.UUID) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM teacher_subjects WHERE teacher_id = $1 AND subject_id = $2
        )
    `
	var ok bool
	if err := r.db.QueryRow(ctx, query, teacherID, subjectID).Scan(&ok); err != nil {
		zap.L().Error("can't check teacher subject", zap.Error(err))
		return false, err
	}
	return ok, nil
}
