package sink_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/sink"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/sink/mocks"
)

func makeQuestions(n int) []domain.Question {
	out := make([]domain.Question, n)
	for i := range out {
		out[i] = domain.Question{
			QuestionID: fmt.Sprintf("q-%04d", i),
			DedupKey:   fmt.Sprintf("What is %d + %d?", i, i),
			Module:     domain.ModuleMath,
			Difficulty: domain.DifficultyMedium,
			Content:    domain.Content{Question: fmt.Sprintf("What is %d + %d?", i, i), Options: []string{}},
			Program:    domain.ProgramSAT,
			Active:     true,
		}
	}
	return out
}

func hasLen(n int) gomock.Matcher {
	return gomock.Cond(func(x any) bool {
		batch, ok := x.([]domain.Question)
		return ok && len(batch) == n
	})
}

func TestBatcher_SplitsAndSurvivesFailedBatch(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockSink := mocks.NewMockSink(ctrl)
	mockSink.EXPECT().Name().Return("mock").AnyTimes()

	gomock.InOrder(
		mockSink.EXPECT().Upsert(gomock.Any(), hasLen(1000)).Return(sink.UpsertResult{InsertedOrUpdated: 1000}, nil),
		mockSink.EXPECT().Upsert(gomock.Any(), hasLen(1000)).Return(sink.UpsertResult{}, errors.New("connection reset")),
		mockSink.EXPECT().Upsert(gomock.Any(), hasLen(500)).Return(sink.UpsertResult{InsertedOrUpdated: 500}, nil),
	)

	result := sink.NewBatcher(sink.DefaultBatchSize, nil).Flush(context.Background(), mockSink, makeQuestions(2500))

	assert.Equal(t, "mock", result.Sink)
	assert.Equal(t, 3, result.Batches)
	assert.Equal(t, 1500, result.InsertedOrUpdated)
	assert.Equal(t, 1000, result.ErrorCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Batch)
	assert.Equal(t, 1000, result.Errors[0].Size)
	assert.EqualError(t, errors.Unwrap(result.Errors[0]), "connection reset")
}

func TestBatcher_PreservesOrder(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockSink := mocks.NewMockSink(ctrl)
	mockSink.EXPECT().Name().Return("mock").AnyTimes()

	var seen []string
	mockSink.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, batch []domain.Question) (sink.UpsertResult, error) {
			for _, q := range batch {
				seen = append(seen, q.QuestionID)
			}
			return sink.UpsertResult{InsertedOrUpdated: len(batch), ErrorCount: 0}, nil
		},
	).Times(3)

	questions := makeQuestions(5)
	result := sink.NewBatcher(2, nil).Flush(context.Background(), mockSink, questions)

	assert.Equal(t, 5, result.InsertedOrUpdated)
	assert.Equal(t, []string{"q-0000", "q-0001", "q-0002", "q-0003", "q-0004"}, seen)
}

func TestBatcher_EmptyInput(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockSink := mocks.NewMockSink(ctrl)
	mockSink.EXPECT().Name().Return("mock").AnyTimes()

	result := sink.NewBatcher(0, nil).Flush(context.Background(), mockSink, nil)
	assert.Zero(t, result.Batches)
	assert.Zero(t, result.InsertedOrUpdated)
}

func TestBatcher_CancelledContextCountsRemaining(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockSink := mocks.NewMockSink(ctrl)
	mockSink.EXPECT().Name().Return("mock").AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := sink.NewBatcher(10, nil).Flush(ctx, mockSink, makeQuestions(25))
	assert.Equal(t, 25, result.ErrorCount)
	assert.Len(t, result.Errors, 3)
	assert.ErrorIs(t, result.Errors[0], context.Canceled)
}

func TestSinkError_Message(t *testing.T) {
	t.Parallel()

	err := &sink.SinkError{Sink: "postgres", Batch: 2, Size: 1000, Err: errors.New("deadlock detected")}
	assert.Equal(t, "sink postgres: batch 2 (1000 records): deadlock detected", err.Error())
}
