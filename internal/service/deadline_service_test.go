package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/marking-hub-api/internal/dto"
	"github.com/noah-isme/marking-hub-api/internal/models"
	"github.com/noah-isme/marking-hub-api/internal/repository"
)

func TestDeadlineServiceUpsert(t *testing.T) {
	db := openTestDB(t, "deadline_service")
	require.NoError(t, db.Create(&models.Challenge{ID: 1, Name: "Forensics 1", Category: "forensics"}).Error)

	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewDeadlineService(
		repository.NewDeadlineRepository(db),
		repository.NewChallengeRepository(db),
		&stubActivityRecorder{},
		validate,
		testLogger(),
	)

	due := time.Date(2026, time.April, 1, 23, 59, 0, 0, time.UTC)
	deadline, err := svc.Upsert(context.Background(), adminActor(), 1, dto.DeadlineUpsertRequest{
		DueDate: due.Format(time.RFC3339),
	})
	require.NoError(t, err)
	require.Equal(t, uint(1), deadline.ChallengeID)
	require.True(t, deadline.DueDate.Equal(due))

	// Upserting again replaces the date rather than adding a second row.
	later := due.Add(7 * 24 * time.Hour)
	updated, err := svc.Upsert(context.Background(), adminActor(), 1, dto.DeadlineUpsertRequest{
		DueDate: later.Format(time.RFC3339),
	})
	require.NoError(t, err)
	require.True(t, updated.DueDate.Equal(later))

	var count int64
	require.NoError(t, db.Model(&models.MarkingDeadline{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	listed, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = svc.Upsert(context.Background(), adminActor(), 1, dto.DeadlineUpsertRequest{DueDate: "next tuesday"})
	require.ErrorIs(t, err, ErrInvalidDueDate)

	_, err = svc.Upsert(context.Background(), adminActor(), 99, dto.DeadlineUpsertRequest{DueDate: due.Format(time.RFC3339)})
	require.ErrorIs(t, err, ErrChallengeNotFound)

	_, err = svc.Get(context.Background(), 99)
	require.ErrorIs(t, err, ErrDeadlineNotFound)
}
