package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/dukex/herald/pkg/attachments"
	"github.com/dukex/herald/pkg/featureflags"
	"github.com/dukex/herald/pkg/models"
	"github.com/dukex/herald/pkg/otelhelper"
	"github.com/dukex/herald/pkg/payload"
	"github.com/dukex/herald/pkg/queue"
	"github.com/dukex/herald/pkg/recipients"
	"github.com/dukex/herald/pkg/tenant"
	"github.com/dukex/herald/pkg/trace"
	"github.com/dukex/herald/pkg/workflow"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Dependencies are the collaborators of a Dispatcher.
type Dependencies struct {
	Workflows   *workflow.Resolver
	Tenants     *tenant.Resolver
	Validator   *payload.Validator
	Attachments *attachments.Externalizer
	Flags       featureflags.Service
	Queue       queue.Client
	Traces      *trace.Recorder
	Tracer      oteltrace.Tracer
	Logger      *slog.Logger
}

// Dispatcher turns a trigger request into a queued job or an acknowledged
// outcome explaining why nothing was queued. It holds no request state.
type Dispatcher struct {
	workflows   *workflow.Resolver
	tenants     *tenant.Resolver
	validator   *payload.Validator
	attachments *attachments.Externalizer
	flags       featureflags.Service
	queue       queue.Client
	traces      *trace.Recorder
	tracer      oteltrace.Tracer
	logger      *slog.Logger
	newID       func() string
}

// NewDispatcher creates a dispatcher. A nil tracer disables spans and nil
// flags evaluate every flag to its default.
func NewDispatcher(deps Dependencies) *Dispatcher {
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	flags := deps.Flags
	if flags == nil {
		flags = featureflags.NewStatic(nil)
	}

	return &Dispatcher{
		workflows:   deps.Workflows,
		tenants:     deps.Tenants,
		validator:   deps.Validator,
		attachments: deps.Attachments,
		flags:       flags,
		queue:       deps.Queue,
		traces:      deps.Traces,
		tracer:      tracer,
		logger:      deps.Logger.With("module", "trigger_dispatcher"),
		newID:       uuid.NewString,
	}
}

// Dispatch runs req through the trigger pipeline. Acknowledged outcomes are
// returned without error. Client errors are returned as is; any other failure
// is traced once and returned as a *DispatchError.
func (d *Dispatcher) Dispatch(ctx context.Context, req *models.TriggerRequest) (*models.DispatchOutcome, error) {
	return d.dispatch(ctx, req, nil)
}

// dispatch is Dispatch with an optional batch of prefetched workflows.
func (d *Dispatcher) dispatch(
	ctx context.Context,
	req *models.TriggerRequest,
	prefetched *workflow.Prefetched,
) (outcome *models.DispatchOutcome, err error) {
	transactionID := req.TransactionID
	if transactionID == "" {
		transactionID = d.newID()
	}

	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatch_trigger",
		attribute.String(otelhelper.TriggerIdentifierKey, req.Identifier),
		attribute.String(otelhelper.AddressingTypeKey, string(req.AddressingType())),
		attribute.String(otelhelper.RequestIDKey, req.RequestID),
		attribute.String(otelhelper.TransactionIDKey, transactionID),
		attribute.String(otelhelper.OrganizationIDKey, req.OrganizationID),
		attribute.String(otelhelper.EnvironmentIDKey, req.EnvironmentID),
	)
	defer span.End()

	run := &pipeline{
		dispatcher:    d,
		req:           req,
		transactionID: transactionID,
		prefetched:    prefetched,
		logger: d.logger.With(
			"identifier", req.Identifier,
			"request_id", req.RequestID,
			"transaction_id", transactionID,
			"organization_id", req.OrganizationID,
			"environment_id", req.EnvironmentID,
		),
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			outcome = nil
			err = d.fail(ctx, span, run, fmt.Errorf("%w: %v", ErrDispatchPanic, recovered), debug.Stack())
		}
	}()

	outcome, err = run.execute(ctx)
	if err != nil {
		if IsClientError(err) {
			otelhelper.SetError(span, err, ErrorCode(err))

			return nil, err
		}

		return nil, d.fail(ctx, span, run, err, debug.Stack())
	}

	span.SetAttributes(attribute.String(otelhelper.DispatchStatusKey, string(outcome.Status)))

	return outcome, nil
}

// fail is the single place unexpected failures are traced.
func (d *Dispatcher) fail(ctx context.Context, span oteltrace.Span, run *pipeline, err error, stack []byte) error {
	otelhelper.SetError(span, err, ErrorCode(err))

	run.logger.ErrorContext(ctx, "Trigger dispatch failed", "error", err)
	run.record(ctx, models.TraceRequestFailed, err.Error(), map[string]any{
		"error": err.Error(),
		"stack": string(stack),
	})

	return &DispatchError{RequestID: run.req.RequestID, Err: err}
}

// pipeline carries the state of one trigger through the dispatch steps.
type pipeline struct {
	dispatcher    *Dispatcher
	req           *models.TriggerRequest
	transactionID string
	prefetched    *workflow.Prefetched
	logger        *slog.Logger
}

func (p *pipeline) execute(ctx context.Context) (*models.DispatchOutcome, error) {
	d := p.dispatcher
	req := p.req

	definition, err := d.workflows.Resolve(ctx, workflow.Query{
		EnvironmentID: req.EnvironmentID,
		Identifier:    req.Identifier,
		BridgeURL:     req.BridgeURL,
		Prefetched:    p.prefetched,
	})
	if err != nil {
		return nil, err
	}

	if definition == nil {
		message := fmt.Sprintf("workflow %q not found", req.Identifier)
		p.record(ctx, models.TraceWorkflowNotFound, message, map[string]any{
			"identifier": req.Identifier,
			"bridgeUrl":  req.BridgeURL,
		})

		return nil, &ServiceError{
			Op:      "dispatch",
			Code:    CodeWorkflowNotFound,
			Message: message,
			Err:     ErrWorkflowNotFound,
		}
	}

	persisted := definition.Persisted()

	data := req.Payload
	if persisted != nil {
		if err := p.checkReservedVariables(ctx, persisted); err != nil {
			return nil, err
		}

		data, err = p.validatePayload(ctx, persisted, data)
		if err != nil {
			return nil, err
		}
	}

	resolved, err := d.tenants.Resolve(ctx, tenant.Query{
		EnvironmentID:  req.EnvironmentID,
		WorkflowID:     definition.ID(),
		WorkflowActive: definition.Active(),
		SkipOverride:   definition.IsDiscovered(),
		Tenant:         req.Tenant,
	})
	if err != nil {
		return nil, err
	}

	if resolved.Missing {
		return p.acknowledge(ctx, models.StatusTenantMissing, models.TraceTenantNotFound,
			fmt.Sprintf("tenant %q not found", req.Tenant.Identifier),
			map[string]any{"tenant": req.Tenant.Identifier}), nil
	}

	if !resolved.EffectiveActive {
		return p.acknowledge(ctx, models.StatusNotActive, models.TraceWorkflowNotActive,
			"workflow is not active", map[string]any{"workflowId": definition.ID()}), nil
	}

	total, active := definition.StepCounts()
	if total == 0 {
		return p.acknowledge(ctx, models.StatusNoWorkflowSteps, models.TraceWorkflowNoSteps,
			"workflow has no steps", map[string]any{"workflowId": definition.ID()}), nil
	}

	if active == 0 {
		return p.acknowledge(ctx, models.StatusNoWorkflowActiveSteps, models.TraceWorkflowNoActiveSteps,
			"workflow has no active steps", map[string]any{"workflowId": definition.ID()}), nil
	}

	data, err = d.attachments.Externalize(ctx, data, req.OrganizationID, req.EnvironmentID)
	if err != nil {
		if errors.Is(err, attachments.ErrInvalidAttachment) {
			p.record(ctx, models.TraceRequestFailed, err.Error(), map[string]any{"error": err.Error()})
		}

		return nil, err
	}

	if persisted != nil && len(persisted.PayloadDefaults) > 0 {
		data = payload.Merge(persisted.PayloadDefaults, data)
	}

	var to any

	if req.AddressingType() == models.AddressingMulticast {
		var proceed bool

		to, proceed = p.resolveRecipients(ctx)
		if !proceed {
			return p.acknowledge(ctx, models.StatusInvalidRecipients, models.TraceInvalidRecipients,
				"all recipients are invalid", map[string]any{"invalidRecipients": req.Recipients()}), nil
		}
	}

	job := p.buildJob(definition, data, to)

	err = d.queue.Enqueue(ctx, p.transactionID, job, req.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue trigger: %w", err)
	}

	p.record(ctx, models.TraceRequestQueued, "request queued", map[string]any{
		"workflowId":     definition.ID(),
		"addressingType": string(req.AddressingType()),
	})

	p.logger.DebugContext(ctx, "Trigger queued", "workflow_id", definition.ID())

	return models.Processed(p.transactionID), nil
}

// checkReservedVariables verifies the actor and tenant carry every field the
// workflow reserves. All gaps are reported together.
func (p *pipeline) checkReservedVariables(ctx context.Context, persisted *models.Workflow) error {
	var missing []string

	for _, group := range persisted.ReservedVariables {
		object := p.contextObject(group.Type)

		for _, variable := range group.Variables {
			if !hasValue(object, variable.Name) {
				missing = append(missing, fmt.Sprintf("%s.%s", group.Type, variable.Name))
			}
		}
	}

	if len(missing) == 0 {
		return nil
	}

	err := &ReservedVariablesError{Missing: missing}
	p.record(ctx, models.TraceReservedVariablesMissing, err.Error(), map[string]any{"missing": missing})

	return err
}

func (p *pipeline) contextObject(variableType models.ReservedVariableType) map[string]any {
	switch variableType {
	case models.ReservedVariableTenant:
		if p.req.Tenant != nil {
			return p.req.Tenant.Object()
		}
	case models.ReservedVariableActor:
		if p.req.Actor != nil {
			return p.req.Actor.Object()
		}
	}

	return nil
}

func hasValue(object map[string]any, name string) bool {
	value, ok := object[name]
	if !ok || value == nil {
		return false
	}

	if text, isText := value.(string); isText {
		return text != ""
	}

	return true
}

func (p *pipeline) validatePayload(
	ctx context.Context,
	persisted *models.Workflow,
	data map[string]any,
) (map[string]any, error) {
	if !persisted.ValidatePayload || len(persisted.PayloadSchema) == 0 {
		return data, nil
	}

	validated, err := p.dispatcher.validator.ValidateVersioned(
		payload.SchemaKey{ID: persisted.ID, Version: persisted.UpdatedAt},
		data,
		persisted.PayloadSchema,
	)
	if err != nil {
		var validationErr *payload.ValidationError
		if errors.As(err, &validationErr) {
			p.record(ctx, models.TracePayloadValidationFailed, "payload validation failed", validationErr.Errors)
		}

		return nil, err
	}

	return validated, nil
}

// resolveRecipients returns the recipients to queue and whether dispatch
// may continue. A multicast without a single valid recipient, including an
// empty or missing list, only proceeds in dry run.
func (p *pipeline) resolveRecipients(ctx context.Context) (any, bool) {
	input := p.req.Recipients()
	parsed := recipients.Parse(input)

	if len(parsed.Invalid) == 0 && len(parsed.Valid) > 0 {
		return rawRecipients(parsed.Valid), true
	}

	dryRun := p.dispatcher.flags.IsEnabled(ctx, featureflags.DryRunInvalidRecipients, featureflags.Scope{
		OrganizationID: p.req.OrganizationID,
		EnvironmentID:  p.req.EnvironmentID,
		UserID:         p.req.UserID,
	}, false)

	if dryRun {
		p.logger.WarnContext(ctx, "Invalid recipients passed through in dry run",
			"valid", len(parsed.Valid),
			"invalid", len(parsed.Invalid))

		return input, true
	}

	if len(parsed.Valid) == 0 {
		return nil, false
	}

	p.logger.WarnContext(ctx, "Dropping invalid recipients",
		"valid", len(parsed.Valid),
		"invalid", len(parsed.Invalid))

	return rawRecipients(parsed.Valid), true
}

func rawRecipients(valid []models.Recipient) []any {
	raw := make([]any, 0, len(valid))
	for _, recipient := range valid {
		raw = append(raw, recipient.Raw)
	}

	return raw
}

func (p *pipeline) buildJob(definition *models.WorkflowDefinition, data map[string]any, to any) *models.QueueJob {
	req := p.req

	job := &models.QueueJob{
		Identifier:     req.Identifier,
		Payload:        data,
		Overrides:      req.Overrides,
		To:             to,
		Actor:          req.Actor,
		Tenant:         req.Tenant,
		TransactionID:  p.transactionID,
		RequestID:      req.RequestID,
		AddressingType: req.AddressingType(),
		BridgeURL:      req.BridgeURL,
		Controls:       req.Controls,
		OrganizationID: req.OrganizationID,
		EnvironmentID:  req.EnvironmentID,
		UserID:         req.UserID,
	}

	if job.Payload == nil {
		job.Payload = map[string]any{}
	}

	if job.Overrides == nil {
		job.Overrides = map[string]any{}
	}

	if definition.IsDiscovered() {
		job.BridgeWorkflow = definition.Discovered()
	} else {
		job.WorkflowID = definition.ID()
	}

	return job
}

// acknowledge traces a terminal business outcome and returns it. These are
// not failures and are logged at info.
func (p *pipeline) acknowledge(
	ctx context.Context,
	status models.DispatchStatus,
	event models.TraceEventType,
	message string,
	rawData any,
) *models.DispatchOutcome {
	p.logger.InfoContext(ctx, "Trigger acknowledged without queueing", "status", status, "reason", message)
	p.record(ctx, event, message, rawData)

	return models.Acknowledge(status)
}

func (p *pipeline) record(ctx context.Context, event models.TraceEventType, message string, rawData any) {
	status := models.TraceStatusError
	if event == models.TraceRequestQueued {
		status = models.TraceStatusSuccess
	}

	p.dispatcher.traces.Record(ctx, trace.Entry{
		RequestID:      p.req.RequestID,
		TransactionID:  p.transactionID,
		OrganizationID: p.req.OrganizationID,
		EnvironmentID:  p.req.EnvironmentID,
		UserID:         p.req.UserID,
		EventType:      event,
		Status:         status,
		Message:        message,
		RawData:        rawData,
	})
}
