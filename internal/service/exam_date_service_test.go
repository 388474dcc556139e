package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/repository"
)

func newTestExamDateService(t *testing.T, now time.Time) ExamDateService {
	t.Helper()
	svc := NewExamDateService(repository.NewExamDateRepository(setupServiceDB(t)), nil, testLogger())
	svc.(*examDateService).now = func() time.Time { return now }
	return svc
}

func TestExamDateServiceCountdown(t *testing.T) {
	now := time.Date(2025, 1, 10, 22, 30, 0, 0, time.UTC)
	svc := newTestExamDateService(t, now)
	ctx := context.Background()

	s1, err := svc.Set(ctx, "S1S3", dto.ExamDateRequest{Title: "S1 & S3 Examens", ExamDate: "2025-01-20"})
	require.NoError(t, err)
	require.Equal(t, "s1s3", s1.Key)
	require.Equal(t, "S1 & S3 Examens", s1.Title)
	require.Equal(t, 10, s1.DaysRemaining)
	require.False(t, s1.Passed)

	_, err = svc.Set(ctx, "s5", dto.ExamDateRequest{Title: "S5 Examens", ExamDate: "2025-01-09T08:00:00+01:00"})
	require.NoError(t, err)

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "s5", items[0].Key)
	require.Equal(t, -1, items[0].DaysRemaining)
	require.True(t, items[0].Passed)

	moved, err := svc.Set(ctx, "s1s3", dto.ExamDateRequest{Title: "S1 & S3 Examens", ExamDate: "2025-01-10"})
	require.NoError(t, err)
	require.Equal(t, 0, moved.DaysRemaining)
	require.False(t, moved.Passed)
}

func TestExamDateServiceValidation(t *testing.T) {
	svc := newTestExamDateService(t, time.Now())
	ctx := context.Background()

	_, err := svc.Set(ctx, "../s5", dto.ExamDateRequest{Title: "x", ExamDate: "2025-01-01"})
	require.ErrorIs(t, err, ErrInvalidExamKey)

	_, err = svc.Set(ctx, "s5", dto.ExamDateRequest{Title: "x", ExamDate: "20/01/2025"})
	require.ErrorIs(t, err, ErrInvalidExamDate)

	_, err = svc.Set(ctx, "s5", dto.ExamDateRequest{ExamDate: "2025-01-01"})
	require.True(t, isValidation(err))

	require.ErrorIs(t, svc.Delete(ctx, "s5"), ErrExamDateNotFound)
}
