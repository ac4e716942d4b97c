package subjectrepo

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Teaches(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()
	repo := New(mockDB)
	teacherID, subjectID := uuid.New(), uuid.New()

	tests := []struct {
		name      string
		mockSetup func()
		expectErr bool
		result    bool
	}{
		{
			name: "teaches",
			mockSetup: func() {
				mockDB.ExpectQuery(regexp.QuoteMeta(`FROM teacher_subjects WHERE teacher_id = $1 AND subject_id = $2`)).
					WithArgs(teacherID, subjectID).
					WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
			},
			result: true,
		},
		{
			name: "does not teach",
			mockSetup: func() {
				mockDB.ExpectQuery(regexp.QuoteMeta(`FROM teacher_subjects`)).
					WithArgs(teacherID, subjectID).
					WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
			},
		},
		{
			name: "database error",
			mockSetup: func() {
				mockDB.ExpectQuery(regexp.QuoteMeta(`FROM teacher_subjects`)).
					WithArgs(teacherID, subjectID).
					WillReturnError(errors.New("database error"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()

			result, err := repo.Teaches(context.Background(), teacherID, subjectID)

			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.result, result)
			assert.NoError(t, mockDB.ExpectationsWereMet())
		})
	}
}
