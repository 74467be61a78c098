package mutations

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/substrate-hq/substrate/domain/connections"
	"github.com/substrate-hq/substrate/domain/events"
	"github.com/substrate-hq/substrate/domain/groups"
	"github.com/substrate-hq/substrate/domain/knowledge"
	"github.com/substrate-hq/substrate/domain/things"
	"github.com/substrate-hq/substrate/internal/config"
	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
	"github.com/substrate-hq/substrate/pkg/logger"
	"github.com/substrate-hq/substrate/pkg/tracing"
)

// Request is the routed mutation envelope.
type Request struct {
	Operation string          `json:"operation" validate:"required"`
	Args      json.RawMessage `json:"args"`
}

// Response carries the mutated entity's ID, the full result, and the event
// the mutation appended. Event is nil only for no-op updates.
type Response struct {
	ID     uuid.UUID     `json:"id"`
	Result any           `json:"result"`
	Event  *events.Event `json:"event,omitempty"`
}

// opFunc executes one registered operation.
type opFunc func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error)

// Router dispatches named mutations to the domain services. Every operation
// it routes runs authorization, the write, and the event append in one
// transaction inside the owning service.
type Router struct {
	ops     map[string]opFunc
	limiter *groupLimiter
	metrics *Metrics
	log     *slog.Logger
}

// NewRouter registers the mutation surface.
func NewRouter(
	cfg *config.Config,
	groupSvc *groups.Service,
	thingSvc *things.Service,
	connSvc *connections.Service,
	knowledgeSvc *knowledge.Service,
	metrics *Metrics,
	log *slog.Logger,
) *Router {
	r := &Router{
		ops:     make(map[string]opFunc),
		limiter: newGroupLimiter(cfg.RateLimit),
		metrics: metrics,
		log:     log.With(logger.Scope("mutations")),
	}

	r.register("group.create", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		var req groups.CreateGroupRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		group, evt, err := groupSvc.Create(ctx, actor, req)
		if err != nil {
			return nil, err
		}
		return &Response{ID: group.ID, Result: group, Event: evt}, nil
	})

	r.register("group.setStatus", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		var req struct {
			ID     uuid.UUID `json:"id"`
			Status string    `json:"status"`
		}
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		group, evt, err := groupSvc.SetStatus(ctx, actor, req.ID, req.Status)
		if err != nil {
			return nil, err
		}
		return &Response{ID: group.ID, Result: group, Event: evt}, nil
	})

	r.register("group.setParent", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		var req struct {
			ID            uuid.UUID  `json:"id"`
			ParentGroupID *uuid.UUID `json:"parentGroupId"`
		}
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		group, evt, err := groupSvc.SetParent(ctx, actor, req.ID, req.ParentGroupID)
		if err != nil {
			return nil, err
		}
		return &Response{ID: group.ID, Result: group, Event: evt}, nil
	})

	r.register("thing.create", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		var req things.CreateThingRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		thing, evt, err := thingSvc.Create(ctx, actor, req)
		if err != nil {
			return nil, err
		}
		return &Response{ID: thing.ID, Result: thing, Event: evt}, nil
	})

	r.register("thing.update", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		var req struct {
			ID uuid.UUID `json:"id"`
			things.UpdateThingRequest
		}
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		thing, evt, err := thingSvc.Update(ctx, actor, req.ID, req.UpdateThingRequest)
		if err != nil {
			return nil, err
		}
		return &Response{ID: thing.ID, Result: thing, Event: evt}, nil
	})

	r.register("thing.setStatus", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		var req struct {
			ID     uuid.UUID `json:"id"`
			Status string    `json:"status"`
		}
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		thing, evt, err := thingSvc.SetStatus(ctx, actor, req.ID, req.Status)
		if err != nil {
			return nil, err
		}
		return &Response{ID: thing.ID, Result: thing, Event: evt}, nil
	})

	r.register("connection.connect", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		var req connections.ConnectRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		conn, evt, err := connSvc.Connect(ctx, actor, req)
		if err != nil {
			return nil, err
		}
		return &Response{ID: conn.ID, Result: conn, Event: evt}, nil
	})

	r.register("connection.disconnect", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		var req struct {
			ID uuid.UUID `json:"id"`
		}
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		conn, evt, err := connSvc.Disconnect(ctx, actor, req.ID)
		if err != nil {
			return nil, err
		}
		return &Response{ID: conn.ID, Result: conn, Event: evt}, nil
	})

	r.register("connection.reorder", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		var req connections.ReorderRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		ord, evt, err := connSvc.Reorder(ctx, actor, req)
		if err != nil {
			return nil, err
		}
		return &Response{ID: req.FromThingID, Result: ord, Event: evt}, nil
	})

	r.register("knowledge.attachLabels", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		var req knowledge.AttachLabelsRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		rec, evt, err := knowledgeSvc.AttachLabels(ctx, actor, req)
		if err != nil {
			return nil, err
		}
		return &Response{ID: rec.ID, Result: rec, Event: evt}, nil
	})

	r.register("knowledge.upsertEmbedding", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		var req knowledge.UpsertEmbeddingRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		rec, evt, err := knowledgeSvc.UpsertEmbedding(ctx, actor, req)
		if err != nil {
			return nil, err
		}
		return &Response{ID: rec.ID, Result: rec, Event: evt}, nil
	})

	return r
}

func (r *Router) register(name string, fn opFunc) {
	r.ops[name] = fn
}

// Operations returns the registered operation names, for discovery.
func (r *Router) Operations() []string {
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	return names
}

// Dispatch routes one mutation. Unknown operations are rejected, and each
// rate-limit key gets its own token bucket.
func (r *Router) Dispatch(ctx context.Context, actor *auth.Actor, req Request) (*Response, error) {
	fn, ok := r.ops[req.Operation]
	if !ok {
		return nil, apperror.ErrUnsupportedOperation.
			WithDetails(map[string]any{"operation": req.Operation})
	}

	if !r.limiter.Allow(limiterKey(actor, req.Args)) {
		r.metrics.observe(req.Operation, "rate_limited", 0)
		return nil, apperror.ErrRateLimited.WithOperation(req.Operation)
	}

	ctx, span := tracing.Start(ctx, "mutations.dispatch",
		attribute.String("operation", req.Operation),
	)
	defer span.End()

	start := time.Now()
	resp, err := fn(ctx, actor, req.Args)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		r.metrics.observe(req.Operation, "error", elapsed)
		return nil, err
	}
	r.metrics.observe(req.Operation, "ok", elapsed)
	r.log.Debug("mutation dispatched",
		slog.String("operation", req.Operation),
		slog.String("id", resp.ID.String()),
	)
	return resp, nil
}

// limiterKey buckets by the mutation's groupId when present, the actor
// otherwise.
func limiterKey(actor *auth.Actor, args json.RawMessage) string {
	var sniff struct {
		GroupID *uuid.UUID `json:"groupId"`
	}
	if err := json.Unmarshal(args, &sniff); err == nil && sniff.GroupID != nil {
		return sniff.GroupID.String()
	}
	return "actor:" + actor.ID.String()
}

func decodeArgs(args json.RawMessage, into any) error {
	if len(args) == 0 {
		return apperror.NewValidation("args", "args is required")
	}
	if err := json.Unmarshal(args, into); err != nil {
		return apperror.NewValidation("args", "args does not match the operation's shape")
	}
	return nil
}
