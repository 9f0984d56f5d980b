package services

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dukex/herald/pkg/attachments"
	"github.com/dukex/herald/pkg/bridge"
	"github.com/dukex/herald/pkg/featureflags"
	"github.com/dukex/herald/pkg/mocks"
	"github.com/dukex/herald/pkg/models"
	"github.com/dukex/herald/pkg/payload"
	"github.com/dukex/herald/pkg/storage"
	"github.com/dukex/herald/pkg/tenant"
	"github.com/dukex/herald/pkg/trace"
	"github.com/dukex/herald/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memoryTraceStore struct {
	mu      sync.Mutex
	records []models.TraceRecord
}

func (s *memoryTraceStore) CreateRequestTrace(_ context.Context, records []models.TraceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, records...)

	return nil
}

func (s *memoryTraceStore) byRequest(requestID string) []models.TraceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found []models.TraceRecord

	for _, record := range s.records {
		if record.RequestID == requestID {
			found = append(found, record)
		}
	}

	return found
}

type fixture struct {
	store      *mocks.MockPersistence
	queue      *mocks.MockQueue
	uploader   *mocks.MockUploader
	discoverer *mocks.MockDiscoverer
	traces     *memoryTraceStore
	dispatcher *Dispatcher
	workflows  *workflow.Resolver
	logger     *slog.Logger
}

func newFixture(t *testing.T, flags map[string]bool) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		store:      mocks.NewMockPersistence(),
		queue:      &mocks.MockQueue{},
		uploader:   &mocks.MockUploader{},
		discoverer: &mocks.MockDiscoverer{},
		traces:     &memoryTraceStore{},
		logger:     logger,
	}

	f.workflows = workflow.NewResolver(f.store, f.discoverer, logger)

	f.dispatcher = NewDispatcher(Dependencies{
		Workflows:   f.workflows,
		Tenants:     tenant.NewResolver(f.store, logger),
		Validator:   payload.NewValidator(),
		Attachments: attachments.NewExternalizer(f.uploader, logger),
		Flags:       featureflags.NewStatic(flags),
		Queue:       f.queue,
		Traces:      trace.NewRecorder(f.traces, logger),
		Logger:      logger,
	})

	return f
}

// tracesFor waits for pending trace writes and returns those of requestID.
func (f *fixture) tracesFor(requestID string) []models.TraceRecord {
	f.dispatcher.traces.Wait()

	return f.traces.byRequest(requestID)
}

func (f *fixture) assertSingleTrace(t *testing.T, requestID string, event models.TraceEventType) models.TraceRecord {
	t.Helper()

	records := f.tracesFor(requestID)
	require.Len(t, records, 1)
	assert.Equal(t, event, records[0].EventType)

	return records[0]
}

func (f *fixture) expectWorkflow(found *models.Workflow) {
	f.store.On("WorkflowByTriggerIdentifier", mock.Anything, "env-1", "welcome").Return(found, nil)
}

func (f *fixture) expectEnqueue() {
	f.queue.On("Enqueue", mock.Anything, mock.Anything, mock.AnythingOfType("*models.QueueJob"), "org-1").Return(nil)
}

func (f *fixture) queuedJob(t *testing.T) *models.QueueJob {
	t.Helper()

	f.queue.AssertNumberOfCalls(t, "Enqueue", 1)

	job, ok := f.queue.Calls[0].Arguments.Get(2).(*models.QueueJob)
	require.True(t, ok)

	return job
}

func activeWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:                "wf-1",
		EnvironmentID:     "env-1",
		OrganizationID:    "org-1",
		TriggerIdentifier: "welcome",
		Active:            true,
		Steps: []*models.WorkflowStep{
			{ID: "step-1", Type: "email", Active: true},
		},
	}
}

func newRequest() *models.TriggerRequest {
	return &models.TriggerRequest{
		Identifier:     "welcome",
		Payload:        map[string]any{"name": "Ada"},
		Addressing:     models.Multicast{To: "subscriber-1"},
		RequestID:      "req-1",
		TransactionID:  "tx-1",
		OrganizationID: "org-1",
		EnvironmentID:  "env-1",
		UserID:         "user-1",
	}
}

func TestDispatcher_Dispatch_Processed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.expectWorkflow(activeWorkflow())
	f.expectEnqueue()

	outcome, err := f.dispatcher.Dispatch(t.Context(), newRequest())
	require.NoError(t, err)
	assert.Equal(t, models.Processed("tx-1"), outcome)

	f.queue.AssertCalled(t, "Enqueue", mock.Anything, "tx-1", mock.Anything, "org-1")

	job := f.queuedJob(t)
	assert.Equal(t, "welcome", job.Identifier)
	assert.Equal(t, "wf-1", job.WorkflowID)
	assert.Equal(t, "tx-1", job.TransactionID)
	assert.Equal(t, "req-1", job.RequestID)
	assert.Equal(t, models.AddressingMulticast, job.AddressingType)
	assert.Equal(t, []any{"subscriber-1"}, job.To)
	assert.Equal(t, map[string]any{"name": "Ada"}, job.Payload)
	assert.Equal(t, map[string]any{}, job.Overrides)
	assert.Nil(t, job.BridgeWorkflow)

	record := f.assertSingleTrace(t, "req-1", models.TraceRequestQueued)
	assert.Equal(t, models.TraceStatusSuccess, record.Status)
	assert.Equal(t, "tx-1", record.TransactionID)
}

func TestDispatcher_Dispatch_TransactionID(t *testing.T) {
	t.Parallel()

	t.Run("caller id is passed through on every retry", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		f.expectWorkflow(activeWorkflow())
		f.expectEnqueue()

		for range 3 {
			outcome, err := f.dispatcher.Dispatch(t.Context(), newRequest())
			require.NoError(t, err)
			assert.Equal(t, "tx-1", outcome.TransactionID)
		}

		f.queue.AssertNumberOfCalls(t, "Enqueue", 3)
	})

	t.Run("missing id is generated", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)
		f.dispatcher.newID = func() string { return "generated" }
		f.expectWorkflow(activeWorkflow())
		f.expectEnqueue()

		req := newRequest()
		req.TransactionID = ""

		outcome, err := f.dispatcher.Dispatch(t.Context(), req)
		require.NoError(t, err)
		assert.Equal(t, "generated", outcome.TransactionID)
		f.queue.AssertCalled(t, "Enqueue", mock.Anything, "generated", mock.Anything, "org-1")
	})
}

func TestDispatcher_Dispatch_WorkflowNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.expectWorkflow(nil)

	outcome, err := f.dispatcher.Dispatch(t.Context(), newRequest())
	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
	assert.True(t, IsClientError(err))
	assert.Equal(t, CodeWorkflowNotFound, ErrorCode(err))

	f.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertSingleTrace(t, "req-1", models.TraceWorkflowNotFound)
}

func TestDispatcher_Dispatch_AcknowledgedOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		workflow func() *models.Workflow
		setup    func(f *fixture)
		tenant   *models.TenantRef
		status   models.DispatchStatus
		event    models.TraceEventType
	}{
		{
			name: "inactive workflow without override",
			workflow: func() *models.Workflow {
				wf := activeWorkflow()
				wf.Active = false

				return wf
			},
			status: models.StatusNotActive,
			event:  models.TraceWorkflowNotActive,
		},
		{
			name:     "tenant missing",
			workflow: activeWorkflow,
			tenant:   &models.TenantRef{Identifier: "acme"},
			setup: func(f *fixture) {
				f.store.On("TenantByIdentifier", mock.Anything, "env-1", "acme").Return(nil, nil)
				f.store.On("WorkflowOverride", mock.Anything, "env-1", "wf-1", "acme").Return(nil, nil)
			},
			status: models.StatusTenantMissing,
			event:  models.TraceTenantNotFound,
		},
		{
			name:     "override disables workflow for tenant",
			workflow: activeWorkflow,
			tenant:   &models.TenantRef{Identifier: "acme"},
			setup: func(f *fixture) {
				f.store.On("TenantByIdentifier", mock.Anything, "env-1", "acme").
					Return(&models.Tenant{ID: "t-1", Identifier: "acme"}, nil)
				f.store.On("WorkflowOverride", mock.Anything, "env-1", "wf-1", "acme").
					Return(&models.WorkflowOverride{WorkflowID: "wf-1", TenantIdentifier: "acme", Active: false}, nil)
			},
			status: models.StatusNotActive,
			event:  models.TraceWorkflowNotActive,
		},
		{
			name: "no steps",
			workflow: func() *models.Workflow {
				wf := activeWorkflow()
				wf.Steps = nil

				return wf
			},
			status: models.StatusNoWorkflowSteps,
			event:  models.TraceWorkflowNoSteps,
		},
		{
			name: "no active steps",
			workflow: func() *models.Workflow {
				wf := activeWorkflow()
				wf.Steps[0].Active = false

				return wf
			},
			status: models.StatusNoWorkflowActiveSteps,
			event:  models.TraceWorkflowNoActiveSteps,
		},
		{
			name:     "all recipients invalid",
			workflow: activeWorkflow,
			setup:    func(*fixture) {},
			status:   models.StatusInvalidRecipients,
			event:    models.TraceInvalidRecipients,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, nil)
			f.expectWorkflow(tt.workflow())

			if tt.setup != nil {
				tt.setup(f)
			}

			req := newRequest()
			req.Tenant = tt.tenant

			if tt.status == models.StatusInvalidRecipients {
				req.Addressing = models.Multicast{To: []any{"not valid!", map[string]any{"email": "x"}}}
			}

			outcome, err := f.dispatcher.Dispatch(t.Context(), req)
			require.NoError(t, err)
			assert.Equal(t, models.Acknowledge(tt.status), outcome)

			f.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

			record := f.assertSingleTrace(t, "req-1", tt.event)
			assert.Equal(t, models.TraceStatusError, record.Status)
		})
	}
}

func TestDispatcher_Dispatch_OverrideEnablesInactiveWorkflow(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	wf := activeWorkflow()
	wf.Active = false
	f.expectWorkflow(wf)
	f.store.On("TenantByIdentifier", mock.Anything, "env-1", "acme").
		Return(&models.Tenant{ID: "t-1", Identifier: "acme"}, nil)
	f.store.On("WorkflowOverride", mock.Anything, "env-1", "wf-1", "acme").
		Return(&models.WorkflowOverride{WorkflowID: "wf-1", TenantIdentifier: "acme", Active: true}, nil)
	f.expectEnqueue()

	req := newRequest()
	req.Tenant = &models.TenantRef{Identifier: "acme"}

	outcome, err := f.dispatcher.Dispatch(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, outcome.Status)
	assert.Equal(t, "acme", f.queuedJob(t).Tenant.Identifier)
}

func TestDispatcher_Dispatch_Recipients(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		flags  map[string]bool
		to     any
		status models.DispatchStatus
		queued any
	}{
		{
			name:   "all invalid without dry run",
			to:     []any{"bad recipient", 42},
			status: models.StatusInvalidRecipients,
		},
		{
			name:   "all invalid with dry run keeps original input",
			flags:  map[string]bool{featureflags.DryRunInvalidRecipients: true},
			to:     []any{"bad recipient", 42},
			status: models.StatusProcessed,
			queued: []any{"bad recipient", 42},
		},
		{
			name:   "empty list without dry run",
			to:     []any{},
			status: models.StatusInvalidRecipients,
		},
		{
			name:   "empty list with dry run",
			flags:  map[string]bool{featureflags.DryRunInvalidRecipients: true},
			to:     []any{},
			status: models.StatusProcessed,
			queued: []any{},
		},
		{
			name:   "missing recipients without dry run",
			to:     nil,
			status: models.StatusInvalidRecipients,
		},
		{
			name:   "missing recipients with dry run",
			flags:  map[string]bool{featureflags.DryRunInvalidRecipients: true},
			to:     nil,
			status: models.StatusProcessed,
			queued: nil,
		},
		{
			name:   "invalid entries are dropped",
			to:     []any{"sub-1", "bad recipient", map[string]any{"topicKey": "news"}},
			status: models.StatusProcessed,
			queued: []any{"sub-1", map[string]any{"topicKey": "news"}},
		},
		{
			name: "subscriber objects keep their fields",
			to: []any{
				map[string]any{"subscriberId": "sub-1", "email": "ada@example.com"},
			},
			status: models.StatusProcessed,
			queued: []any{map[string]any{"subscriberId": "sub-1", "email": "ada@example.com"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, tt.flags)
			f.expectWorkflow(activeWorkflow())
			f.expectEnqueue()

			req := newRequest()
			req.Addressing = models.Multicast{To: tt.to}

			outcome, err := f.dispatcher.Dispatch(t.Context(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, outcome.Status)

			if tt.status != models.StatusProcessed {
				f.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
				f.assertSingleTrace(t, "req-1", models.TraceInvalidRecipients)

				return
			}

			assert.Equal(t, tt.queued, f.queuedJob(t).To)
		})
	}
}

func TestDispatcher_Dispatch_WithoutAddressing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.expectWorkflow(activeWorkflow())

	req := newRequest()
	req.Addressing = nil

	outcome, err := f.dispatcher.Dispatch(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, models.Acknowledge(models.StatusInvalidRecipients), outcome)

	f.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertSingleTrace(t, "req-1", models.TraceInvalidRecipients)
}

func TestDispatcher_Dispatch_DryRunFlagScope(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	flags := &mocks.MockFlags{}
	f.dispatcher.flags = flags

	flags.On("IsEnabled", mock.Anything, featureflags.DryRunInvalidRecipients, featureflags.Scope{
		OrganizationID: "org-1",
		EnvironmentID:  "env-1",
		UserID:         "user-1",
	}, false).Return(false)

	f.expectWorkflow(activeWorkflow())

	req := newRequest()
	req.Addressing = models.Multicast{To: "bad recipient"}

	outcome, err := f.dispatcher.Dispatch(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInvalidRecipients, outcome.Status)
	flags.AssertExpectations(t)
}

func TestDispatcher_Dispatch_Broadcast(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	flags := &mocks.MockFlags{}
	f.dispatcher.flags = flags

	f.expectWorkflow(activeWorkflow())
	f.expectEnqueue()

	req := newRequest()
	req.Addressing = models.Broadcast{}

	outcome, err := f.dispatcher.Dispatch(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, outcome.Status)

	job := f.queuedJob(t)
	assert.Equal(t, models.AddressingBroadcast, job.AddressingType)
	assert.Nil(t, job.To)
	flags.AssertNotCalled(t, "IsEnabled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_Dispatch_ReservedVariables(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	wf := activeWorkflow()
	wf.ReservedVariables = []models.ReservedVariableGroup{
		{Type: models.ReservedVariableTenant, Variables: []models.ReservedVariable{{Name: "identifier"}, {Name: "name"}}},
		{Type: models.ReservedVariableActor, Variables: []models.ReservedVariable{{Name: "email"}}},
	}
	f.expectWorkflow(wf)

	req := newRequest()
	req.Tenant = &models.TenantRef{Identifier: "acme"}
	req.Actor = &models.Subscriber{SubscriberID: "actor-1"}

	outcome, err := f.dispatcher.Dispatch(t.Context(), req)
	require.Error(t, err)
	assert.Nil(t, outcome)

	var reservedErr *ReservedVariablesError
	require.ErrorAs(t, err, &reservedErr)
	assert.Equal(t, []string{"tenant.name", "actor.email"}, reservedErr.Missing)
	assert.Equal(t, "Missing reserved variables: tenant.name, actor.email", err.Error())
	assert.True(t, IsClientError(err))

	record := f.assertSingleTrace(t, "req-1", models.TraceReservedVariablesMissing)
	assert.Equal(t, err.Error(), record.Message)
}

func TestDispatcher_Dispatch_ReservedVariablesSatisfied(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	wf := activeWorkflow()
	wf.ReservedVariables = []models.ReservedVariableGroup{
		{Type: models.ReservedVariableActor, Variables: []models.ReservedVariable{{Name: "email"}}},
	}
	f.expectWorkflow(wf)
	f.expectEnqueue()

	req := newRequest()
	req.Actor = &models.Subscriber{
		SubscriberID: "actor-1",
		Fields:       map[string]any{"subscriberId": "actor-1", "email": "ada@example.com"},
	}

	outcome, err := f.dispatcher.Dispatch(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, outcome.Status)
}

func TestDispatcher_Dispatch_PayloadValidation(t *testing.T) {
	t.Parallel()

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
			"age":  map[string]any{"type": "number", "default": 18},
		},
		"required": []any{"name"},
	}

	t.Run("violations are traced and returned", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)

		wf := activeWorkflow()
		wf.ValidatePayload = true
		wf.PayloadSchema = schema
		f.expectWorkflow(wf)

		req := newRequest()
		req.Payload = map[string]any{}

		_, err := f.dispatcher.Dispatch(t.Context(), req)
		require.Error(t, err)

		var validationErr *payload.ValidationError
		require.ErrorAs(t, err, &validationErr)
		require.Len(t, validationErr.Errors, 1)
		assert.Equal(t, "name", validationErr.Errors[0].Field)
		assert.Equal(t, CodePayloadValidationFailed, ErrorCode(err))

		record := f.assertSingleTrace(t, "req-1", models.TracePayloadValidationFailed)
		assert.Equal(t, validationErr.Errors, record.RawData)
	})

	t.Run("defaults are applied", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)

		wf := activeWorkflow()
		wf.ValidatePayload = true
		wf.PayloadSchema = schema
		f.expectWorkflow(wf)
		f.expectEnqueue()

		_, err := f.dispatcher.Dispatch(t.Context(), newRequest())
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": "Ada", "age": 18}, f.queuedJob(t).Payload)
	})

	t.Run("schema is ignored when validation is off", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, nil)

		wf := activeWorkflow()
		wf.PayloadSchema = schema
		f.expectWorkflow(wf)
		f.expectEnqueue()

		req := newRequest()
		req.Payload = map[string]any{}

		outcome, err := f.dispatcher.Dispatch(t.Context(), req)
		require.NoError(t, err)
		assert.Equal(t, models.StatusProcessed, outcome.Status)
	})
}

func TestDispatcher_Dispatch_MergesPayloadDefaults(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	wf := activeWorkflow()
	wf.PayloadDefaults = map[string]any{
		"name":     "Friend",
		"settings": map[string]any{"locale": "en", "theme": "light"},
	}
	f.expectWorkflow(wf)
	f.expectEnqueue()

	req := newRequest()
	req.Payload = map[string]any{"settings": map[string]any{"theme": "dark"}}

	_, err := f.dispatcher.Dispatch(t.Context(), req)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"name":     "Friend",
		"settings": map[string]any{"locale": "en", "theme": "dark"},
	}, f.queuedJob(t).Payload)
}

func TestDispatcher_Dispatch_ExternalizesAttachments(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.expectWorkflow(activeWorkflow())
	f.expectEnqueue()
	f.uploader.On("Upload", mock.Anything, mock.MatchedBy(func(objects []storage.Object) bool {
		return len(objects) == 1 && string(objects[0].Content) == "hello"
	})).Return(nil)

	req := newRequest()
	req.Payload = map[string]any{
		"attachments": []any{
			map[string]any{
				"name": "hello.txt",
				"mime": "text/plain",
				"file": base64.StdEncoding.EncodeToString([]byte("hello")),
			},
		},
	}

	_, err := f.dispatcher.Dispatch(t.Context(), req)
	require.NoError(t, err)
	f.uploader.AssertExpectations(t)

	queued := f.queuedJob(t).Payload["attachments"].([]any)
	require.Len(t, queued, 1)

	attachment := queued[0].(map[string]any)
	assert.NotContains(t, attachment, "file")
	assert.Contains(t, attachment["storagePath"], "org-1/env-1/")
}

func TestDispatcher_Dispatch_InvalidAttachment(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.expectWorkflow(activeWorkflow())

	req := newRequest()
	req.Payload = map[string]any{
		"attachments": []any{map[string]any{"name": "a.txt", "file": "%%%"}},
	}

	_, err := f.dispatcher.Dispatch(t.Context(), req)
	require.ErrorIs(t, err, attachments.ErrInvalidAttachment)
	assert.True(t, IsClientError(err))

	f.uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	f.assertSingleTrace(t, "req-1", models.TraceRequestFailed)
}

func TestDispatcher_Dispatch_BridgeWorkflow(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.discoverer.On("Discover", mock.Anything, "https://bridge.example.com/api", "env-1").
		Return(&bridge.DiscoverResponse{Workflows: []models.DiscoveredWorkflow{
			{WorkflowID: "other"},
			{WorkflowID: "welcome", Steps: []models.DiscoveredStep{{StepID: "email", Type: "email"}}},
		}}, nil)
	f.store.On("TenantByIdentifier", mock.Anything, "env-1", "acme").
		Return(&models.Tenant{ID: "t-1", Identifier: "acme"}, nil)
	f.expectEnqueue()

	req := newRequest()
	req.BridgeURL = "https://bridge.example.com/api"
	req.Tenant = &models.TenantRef{Identifier: "acme"}

	outcome, err := f.dispatcher.Dispatch(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, outcome.Status)

	job := f.queuedJob(t)
	require.NotNil(t, job.BridgeWorkflow)
	assert.Equal(t, "welcome", job.BridgeWorkflow.WorkflowID)
	assert.Empty(t, job.WorkflowID)
	assert.Equal(t, "https://bridge.example.com/api", job.BridgeURL)

	f.store.AssertNotCalled(t, "WorkflowByTriggerIdentifier", mock.Anything, mock.Anything, mock.Anything)
	f.store.AssertNotCalled(t, "WorkflowOverride", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_Dispatch_BridgeFailureIsNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.discoverer.On("Discover", mock.Anything, mock.Anything, "env-1").
		Return(nil, context.DeadlineExceeded)

	req := newRequest()
	req.BridgeURL = "https://bridge.example.com/api"

	_, err := f.dispatcher.Dispatch(t.Context(), req)
	require.ErrorIs(t, err, ErrWorkflowNotFound)
	f.assertSingleTrace(t, "req-1", models.TraceWorkflowNotFound)
}

func TestDispatcher_Dispatch_SystemErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(f *fixture)
		is    error
	}{
		{
			name: "enqueue failure",
			setup: func(f *fixture) {
				f.expectWorkflow(activeWorkflow())
				f.queue.On("Enqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(errors.New("broker unavailable"))
			},
		},
		{
			name: "store failure",
			setup: func(f *fixture) {
				f.store.On("WorkflowByTriggerIdentifier", mock.Anything, "env-1", "welcome").
					Return(nil, errors.New("connection reset"))
			},
		},
		{
			name: "panic",
			setup: func(f *fixture) {
				f.expectWorkflow(activeWorkflow())
				f.queue.On("Enqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Run(func(mock.Arguments) { panic("boom") }).
					Return(nil)
			},
			is: ErrDispatchPanic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, nil)
			tt.setup(f)

			outcome, err := f.dispatcher.Dispatch(t.Context(), newRequest())
			require.Error(t, err)
			assert.Nil(t, outcome)
			assert.False(t, IsClientError(err))

			var dispatchErr *DispatchError
			require.ErrorAs(t, err, &dispatchErr)
			assert.Equal(t, "req-1", dispatchErr.RequestID)

			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}

			record := f.assertSingleTrace(t, "req-1", models.TraceRequestFailed)
			assert.Equal(t, "tx-1", record.TransactionID)

			rawData, ok := record.RawData.(map[string]any)
			require.True(t, ok)
			assert.NotEmpty(t, rawData["error"])
			assert.NotEmpty(t, rawData["stack"])
		})
	}
}

func TestDispatcher_Dispatch_WithoutRequestIDWritesNoTrace(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.expectWorkflow(nil)

	req := newRequest()
	req.RequestID = ""

	_, err := f.dispatcher.Dispatch(t.Context(), req)
	require.ErrorIs(t, err, ErrWorkflowNotFound)

	f.dispatcher.traces.Wait()
	assert.Empty(t, f.traces.records)
}
