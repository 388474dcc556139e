package service

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	clientmodel "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/observability"
	"github.com/noah-isme/gradebook-api/internal/repository"
)

func newTestRosterService(t *testing.T, cache *redis.Client, events EventPublisher) RosterService {
	t.Helper()
	db := setupServiceDB(t)
	return NewRosterService(
		repository.NewRosterRepository(db),
		repository.NewEvaluationRepository(db),
		testEngine(t),
		validator.New(validator.WithRequiredStructEnabled()),
		RosterServiceConfig{Cache: cache, CacheTTL: time.Minute, Events: events},
		testLogger(),
	)
}

func score(v float64) grading.Score {
	return grading.NewScore(v)
}

func sampleCreateRequest() dto.RosterCreateRequest {
	return dto.RosterCreateRequest{
		StudentName:   "  <b>Amina</b> Benali ",
		StudentNumber: "S-001",
		Modules: []dto.ModuleRequest{
			{
				Name: "Analysis",
				Subjects: []dto.SubjectRequest{
					{Name: "Calculus", Exam: score(12), Devoir: score(14), Coefficient: score(2)},
					{Name: "Algebra", Exam: score(25), Devoir: score(-3), Coefficient: score(1)},
				},
			},
			{
				Name: "Physics",
				Subjects: []dto.SubjectRequest{
					{Name: "Mechanics", Exam: score(8), Devoir: score(9), Coefficient: score(3)},
				},
			},
		},
	}
}

func TestRosterServiceCreateSanitisesAndClamps(t *testing.T) {
	svc := newTestRosterService(t, nil, nil)

	created, err := svc.Create(context.Background(), sampleCreateRequest())
	require.NoError(t, err)
	require.Equal(t, "Amina Benali", created.StudentName)
	require.Equal(t, uint(1), created.Version)
	require.Len(t, created.Modules, 2)

	algebra := created.Modules[0].Subjects[1]
	require.Equal(t, score(20), algebra.Exam)
	require.Equal(t, score(0), algebra.Devoir)
}

func TestRosterServiceRejectsUnknownPolicy(t *testing.T) {
	svc := newTestRosterService(t, nil, nil)

	req := sampleCreateRequest()
	req.Policy = "lenient"
	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidPolicy)

	created, err := svc.Create(context.Background(), sampleCreateRequest())
	require.NoError(t, err)

	_, err = svc.Evaluate(context.Background(), created.ID, "lenient")
	require.ErrorIs(t, err, ErrInvalidPolicy)

	bad := "whatever"
	_, err = svc.Update(context.Background(), created.ID, dto.RosterUpdateRequest{Policy: &bad})
	require.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestRosterServiceEvaluateCachesByVersion(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	events := &recordingPublisher{}
	svc := newTestRosterService(t, redisClient, events)
	ctx := context.Background()

	created, err := svc.Create(ctx, sampleCreateRequest())
	require.NoError(t, err)

	first, err := svc.Evaluate(ctx, created.ID, "")
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.Equal(t, grading.PolicySimple, first.Result.Policy)
	// Analysis: (12*0.6+14*0.4)*2 + (20*0.6+0)*1 = 25.6 + 12 = 37.6 / 3
	require.Equal(t, 12.53, first.Result.Modules[0].Average)
	require.Equal(t, grading.ModuleValidated, first.Result.Modules[0].Status)
	require.Equal(t, grading.ModuleNotValidated, first.Result.Modules[1].Status)

	second, err := svc.Evaluate(ctx, created.ID, "")
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Equal(t, first.Result, second.Result)

	history, err := svc.History(ctx, created.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].Result)
	require.Equal(t, first.Result.OverallAverage, history[0].OverallAverage)
	require.Equal(t, []string{EventRosterEvaluated}, events.names())

	mechanics := created.Modules[1].Subjects[0]
	_, err = svc.UpdateSubject(ctx, created.ID, mechanics.ID, dto.SubjectUpdateRequest{
		Exam: dto.OptionalScore{Set: true, Score: score(16)},
	})
	require.NoError(t, err)

	third, err := svc.Evaluate(ctx, created.ID, "")
	require.NoError(t, err)
	require.False(t, third.CacheHit)
	require.Equal(t, created.Version+1, third.RosterVersion)
	require.Equal(t, grading.ModuleValidated, third.Result.Modules[1].Status)

	history, err = svc.History(ctx, created.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, third.RosterVersion, history[0].RosterVersion)
}

func TestRosterServicePolicyResolution(t *testing.T) {
	svc := newTestRosterService(t, nil, nil)
	ctx := context.Background()

	req := dto.RosterCreateRequest{
		Policy: "threshold-nine-with-floor",
		Modules: []dto.ModuleRequest{
			{Name: "A", Subjects: []dto.SubjectRequest{{Name: "a1", Exam: score(9), Devoir: score(9.5), Coefficient: score(1)}}},
			{Name: "B", Subjects: []dto.SubjectRequest{{Name: "b1", Exam: score(12), Devoir: score(12), Coefficient: score(1)}}},
		},
	}
	created, err := svc.Create(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "threshold_nine_with_floor", created.Policy)

	stored, err := svc.Evaluate(ctx, created.ID, "")
	require.NoError(t, err)
	require.Equal(t, grading.PolicyThresholdNineWithFloor, stored.Result.Policy)
	require.True(t, stored.Result.Modules[0].Compensated)

	overridden, err := svc.Evaluate(ctx, created.ID, "no_compensation")
	require.NoError(t, err)
	require.Equal(t, grading.PolicyNoCompensation, overridden.Result.Policy)
	require.False(t, overridden.Result.Modules[0].Passed)
}

func TestRosterServiceModuleAndSubjectLifecycle(t *testing.T) {
	svc := newTestRosterService(t, nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, dto.RosterCreateRequest{StudentName: "Yacine"})
	require.NoError(t, err)
	require.Empty(t, created.Modules)

	module, err := svc.AddModule(ctx, created.ID, dto.ModuleRequest{Name: "Chemistry"})
	require.NoError(t, err)
	require.Equal(t, "Chemistry", module.Name)

	subject, err := svc.AddSubject(ctx, created.ID, module.ID, dto.SubjectRequest{Name: "Organic", Exam: score(11)})
	require.NoError(t, err)
	require.False(t, subject.Devoir.Present)

	renamed, err := svc.RenameModule(ctx, created.ID, module.ID, dto.ModuleRenameRequest{Name: "General Chemistry"})
	require.NoError(t, err)
	require.Equal(t, "General Chemistry", renamed.Name)
	require.Len(t, renamed.Subjects, 1)

	updated, err := svc.UpdateSubject(ctx, created.ID, subject.ID, dto.SubjectUpdateRequest{
		Exam:        dto.OptionalScore{Set: true},
		Coefficient: dto.OptionalScore{Set: true, Score: score(2)},
	})
	require.NoError(t, err)
	require.False(t, updated.Exam.Present)
	require.Equal(t, score(2), updated.Coefficient)

	require.NoError(t, svc.DeleteSubject(ctx, created.ID, subject.ID))
	require.ErrorIs(t, svc.DeleteSubject(ctx, created.ID, subject.ID), ErrSubjectNotFound)

	require.NoError(t, svc.DeleteModule(ctx, created.ID, module.ID))
	require.ErrorIs(t, svc.DeleteModule(ctx, created.ID, module.ID), ErrModuleNotFound)

	_, err = svc.AddModule(ctx, created.ID+99, dto.ModuleRequest{Name: "Ghost"})
	require.ErrorIs(t, err, ErrRosterNotFound)
	_, err = svc.AddSubject(ctx, created.ID, module.ID, dto.SubjectRequest{Name: "Ghost"})
	require.ErrorIs(t, err, ErrModuleNotFound)

	stored, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, uint(7), stored.Version)
}

func TestRosterServiceListAndDelete(t *testing.T) {
	svc := newTestRosterService(t, nil, nil)
	ctx := context.Background()

	for _, name := range []string{"Amina", "Sara", "Yacine"} {
		_, err := svc.Create(ctx, dto.RosterCreateRequest{StudentName: name})
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, dto.RosterListRequest{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	require.Equal(t, int64(3), list.Pagination.TotalItems)
	require.Equal(t, 2, list.Pagination.TotalPages)

	require.NoError(t, svc.Delete(ctx, list.Items[0].ID))
	require.ErrorIs(t, svc.Delete(ctx, list.Items[0].ID), ErrRosterNotFound)

	_, err = svc.Get(ctx, list.Items[0].ID)
	require.ErrorIs(t, err, ErrRosterNotFound)
	_, err = svc.History(ctx, list.Items[0].ID, 5)
	require.ErrorIs(t, err, ErrRosterNotFound)
}

func TestRosterServiceEvaluateSurvivesPublisherFailure(t *testing.T) {
	events := &recordingPublisher{err: errors.New("nats down")}
	svc := newTestRosterService(t, nil, events)
	ctx := context.Background()

	created, err := svc.Create(ctx, sampleCreateRequest())
	require.NoError(t, err)

	_, err = svc.Evaluate(ctx, created.ID, "")
	require.NoError(t, err)
	require.Len(t, events.names(), 1)
}

func evaluationCount(t *testing.T, policy grading.Policy, source string) float64 {
	t.Helper()
	var metric clientmodel.Metric
	require.NoError(t, observability.Evaluations().WithLabelValues(policy.String(), source).Write(&metric))
	return metric.GetCounter().GetValue()
}

func TestRosterServiceEvaluateCountsRosterSource(t *testing.T) {
	svc := newTestRosterService(t, nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, sampleCreateRequest())
	require.NoError(t, err)

	roster := evaluationCount(t, grading.PolicyNoCompensation, SourceRoster)
	stateless := evaluationCount(t, grading.PolicyNoCompensation, SourceStateless)

	_, err = svc.Evaluate(ctx, created.ID, string(grading.PolicyNoCompensation))
	require.NoError(t, err)

	require.Equal(t, roster+1, evaluationCount(t, grading.PolicyNoCompensation, SourceRoster))
	require.Equal(t, stateless, evaluationCount(t, grading.PolicyNoCompensation, SourceStateless))
}
