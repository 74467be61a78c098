package queries

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
	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/auth"
	"github.com/substrate-hq/substrate/pkg/logger"
	"github.com/substrate-hq/substrate/pkg/tracing"
)

// Request is the routed query envelope.
type Request struct {
	Operation string          `json:"operation" validate:"required"`
	Args      json.RawMessage `json:"args"`
}

// Response carries the query result and, for paginated operations, the
// cursor for the next page.
type Response struct {
	Items  any     `json:"items"`
	Cursor *string `json:"cursor,omitempty"`
}

type opFunc func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error)

// Router dispatches named queries to the domain services. Tenant-first: a
// query without a group scope only runs when the actor holds platform scope
// and asked for it explicitly.
type Router struct {
	ops     map[string]opFunc
	metrics *Metrics
	log     *slog.Logger
}

// NewRouter registers the query surface.
func NewRouter(
	groupSvc *groups.Service,
	thingSvc *things.Service,
	connSvc *connections.Service,
	knowledgeSvc *knowledge.Service,
	eventSvc *events.Service,
	metrics *Metrics,
	log *slog.Logger,
) *Router {
	r := &Router{
		ops:     make(map[string]opFunc),
		metrics: metrics,
		log:     log.With(logger.Scope("queries")),
	}

	r.register("thing.list", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		var req struct {
			GroupID    *uuid.UUID               `json:"groupId,omitempty"`
			Scope      string                   `json:"scope,omitempty"`
			Types      []string                 `json:"types,omitempty"`
			Status     *string                  `json:"status,omitempty"`
			NameSearch *string                  `json:"nameSearch,omitempty"`
			Filters    []things.AttributeFilter `json:"filters,omitempty"`
			Limit      int                      `json:"limit,omitempty"`
			Cursor     *string                  `json:"cursor,omitempty"`
		}
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		list, next, err := thingSvc.List(ctx, actor, things.ListParams{
			GroupID:       req.GroupID,
			PlatformScope: req.Scope == "platform",
			Types:         req.Types,
			Status:        req.Status,
			NameSearch:    req.NameSearch,
			Filters:       req.Filters,
			Limit:         req.Limit,
			Cursor:        req.Cursor,
		})
		if err != nil {
			return nil, err
		}
		return &Response{Items: list, Cursor: next}, nil
	})

	r.register("thing.get", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		var req struct {
			ID uuid.UUID `json:"id"`
		}
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		thing, err := thingSvc.Get(ctx, actor, req.ID)
		if err != nil {
			return nil, err
		}
		return &Response{Items: thing}, nil
	})

	r.register("connection.listFrom", connectionList(connSvc, connections.DirectionFrom))
	r.register("connection.listTo", connectionList(connSvc, connections.DirectionTo))

	r.register("knowledge.search", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		var req knowledge.SearchRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		results, err := knowledgeSvc.Search(ctx, actor, req)
		if err != nil {
			return nil, err
		}
		return &Response{Items: results}, nil
	})

	r.register("knowledge.searchByLabel", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		var req knowledge.SearchByLabelRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		records, err := knowledgeSvc.SearchByLabel(ctx, actor, req)
		if err != nil {
			return nil, err
		}
		return &Response{Items: records}, nil
	})

	r.register("event.byActor", eventQuery(eventSvc, func(svc *events.Service, ctx context.Context, actor *auth.Actor, q eventQueryArgs) ([]*events.Event, *string, error) {
		if q.ActorID == nil {
			return nil, nil, apperror.NewValidation("actorId", "actorId is required")
		}
		return svc.QueryByActor(ctx, actor, *q.ActorID, q.scope(), q.Range, q.Limit, q.Cursor)
	}))
	r.register("event.byTarget", eventQuery(eventSvc, func(svc *events.Service, ctx context.Context, actor *auth.Actor, q eventQueryArgs) ([]*events.Event, *string, error) {
		if q.TargetID == nil {
			return nil, nil, apperror.NewValidation("targetId", "targetId is required")
		}
		return svc.QueryByTarget(ctx, actor, *q.TargetID, q.scope(), q.Range, q.Limit, q.Cursor)
	}))
	r.register("event.byType", eventQuery(eventSvc, func(svc *events.Service, ctx context.Context, actor *auth.Actor, q eventQueryArgs) ([]*events.Event, *string, error) {
		if q.Type == nil || *q.Type == "" {
			return nil, nil, apperror.NewValidation("type", "type is required")
		}
		return svc.QueryByType(ctx, actor, *q.Type, q.scope(), q.Range, q.Limit, q.Cursor)
	}))

	r.register("group.effectiveSettings", func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		var req struct {
			GroupID uuid.UUID `json:"groupId"`
		}
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		if req.GroupID == uuid.Nil {
			return nil, apperror.NewValidation("groupId", "groupId is required").WithOperation("group.effectiveSettings")
		}
		settings, err := groupSvc.EffectiveSettings(ctx, actor, req.GroupID)
		if err != nil {
			return nil, err
		}
		return &Response{Items: settings}, nil
	})

	return r
}

func (r *Router) register(name string, fn opFunc) {
	r.ops[name] = fn
}

// Operations returns the registered query names.
func (r *Router) Operations() []string {
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	return names
}

// Dispatch routes one query.
func (r *Router) Dispatch(ctx context.Context, actor *auth.Actor, req Request) (*Response, error) {
	fn, ok := r.ops[req.Operation]
	if !ok {
		return nil, apperror.ErrUnsupportedOperation.
			WithDetails(map[string]any{"operation": req.Operation})
	}

	ctx, span := tracing.Start(ctx, "queries.dispatch",
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
	return resp, nil
}

func connectionList(svc *connections.Service, direction connections.Direction) opFunc {
	return func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		var req struct {
			ThingID        uuid.UUID `json:"thingId"`
			Type           *string   `json:"type,omitempty"`
			IncludeExpired bool      `json:"includeExpired,omitempty"`
			Limit          int       `json:"limit,omitempty"`
		}
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		if req.ThingID == uuid.Nil {
			return nil, apperror.NewValidation("thingId", "thingId is required")
		}
		result, err := svc.List(ctx, actor, connections.ListParams{
			ThingID:        req.ThingID,
			Direction:      direction,
			Type:           req.Type,
			IncludeExpired: req.IncludeExpired,
			Limit:          req.Limit,
		})
		if err != nil {
			return nil, err
		}
		return &Response{Items: result}, nil
	}
}

type eventQueryArgs struct {
	GroupID  *uuid.UUID       `json:"groupId,omitempty"`
	Scope    string           `json:"scope,omitempty"`
	ActorID  *uuid.UUID       `json:"actorId,omitempty"`
	TargetID *uuid.UUID       `json:"targetId,omitempty"`
	Type     *string          `json:"type,omitempty"`
	Range    events.TimeRange `json:"range,omitempty"`
	Limit    int              `json:"limit,omitempty"`
	Cursor   *string          `json:"cursor,omitempty"`
}

func (q eventQueryArgs) scope() events.QueryScope {
	return events.QueryScope{GroupID: q.GroupID, Platform: q.Scope == "platform"}
}

func eventQuery(svc *events.Service, run func(*events.Service, context.Context, *auth.Actor, eventQueryArgs) ([]*events.Event, *string, error)) opFunc {
	return func(ctx context.Context, actor *auth.Actor, args json.RawMessage) (*Response, error) {
		var q eventQueryArgs
		if err := decodeArgs(args, &q); err != nil {
			return nil, err
		}
		list, next, err := run(svc, ctx, actor, q)
		if err != nil {
			return nil, err
		}
		return &Response{Items: list, Cursor: next}, nil
	}
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
