package mocks

import (
	"context"

	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/workflow"
	"github.com/stretchr/testify/mock"
)

// MockEngine mocks the engine operations exposed over HTTP.
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) TriggerWorkflows(ctx context.Context, event *models.Event) ([]workflow.Decision, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]workflow.Decision), args.Error(1)
}

func (m *MockEngine) Run(ctx context.Context, workflowID string, req workflow.RunRequest) (*models.WorkflowExecution, error) {
	args := m.Called(ctx, workflowID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowExecution), args.Error(1)
}

func (m *MockEngine) Test(ctx context.Context, workflowID string, req workflow.RunRequest) (workflow.Result, error) {
	args := m.Called(ctx, workflowID, req)

	return args.Get(0).(workflow.Result), args.Error(1)
}

func (m *MockEngine) Retry(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowExecution), args.Error(1)
}

func (m *MockEngine) Cancel(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowExecution), args.Error(1)
}
