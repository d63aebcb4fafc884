// Package dispatch routes request envelopes to the sync engine and shapes responses.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/louisbranch/deltasync/internal/sync/engine"
	"github.com/louisbranch/deltasync/internal/sync/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Error kinds surfaced to the client. NotFound is deliberately absent: a
// missing row comes back as data null with no kind.
const (
	KindConflict         = "Conflict"
	KindInternalFailure  = "InternalFailure"
	KindUnknownOperation = "UnknownOperation"
)

// Request is the inbound operation envelope.
type Request struct {
	OperationName string          `json:"operation_name"`
	Arguments     json.RawMessage `json:"arguments"`
}

// Response is the outbound envelope.
type Response struct {
	Data         any    `json:"data"`
	ErrorMessage string `json:"error_message,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
}

type mutationArgs struct {
	Input map[string]any `json:"input"`
}

// Dispatcher resolves operation names and invokes the engine.
type Dispatcher struct {
	engine *engine.Engine
}

// New creates a dispatcher over the given engine.
func New(eng *engine.Engine) *Dispatcher {
	return &Dispatcher{engine: eng}
}

// Dispatch executes one operation envelope. Every fault escaping a handler is
// converted here into an InternalFailure response; nothing propagates as an
// unstructured crash to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (resp Response) {
	op, ok := schema.Resolve(req.OperationName)
	if !ok {
		// The legacy contract left this case undefined; reject explicitly.
		return Response{
			ErrorMessage: fmt.Sprintf("unknown operation %q", req.OperationName),
			ErrorKind:    KindUnknownOperation,
		}
	}

	ctx, span := otel.Tracer("deltasync").Start(ctx, "dispatch "+op.Name)
	defer span.End()
	span.SetAttributes(
		attribute.String("sync.operation", op.Name),
		attribute.String("sync.entity", op.Entity.Name),
	)

	defer func() {
		if recovered := recover(); recovered != nil {
			log.Printf("operation %s panicked args=%s: %v", op.Name, req.Arguments, recovered)
			span.SetStatus(codes.Error, fmt.Sprint(recovered))
			resp = Response{
				ErrorMessage: fmt.Sprintf("operation %s failed", op.Name),
				ErrorKind:    KindInternalFailure,
			}
		}
	}()

	resp, err := d.run(ctx, op, req.Arguments)
	if err != nil {
		log.Printf("operation %s failed args=%s: %v", op.Name, req.Arguments, err)
		span.SetStatus(codes.Error, err.Error())
		return Response{
			ErrorMessage: err.Error(),
			ErrorKind:    KindInternalFailure,
		}
	}
	return resp
}

func (d *Dispatcher) run(ctx context.Context, op schema.Operation, rawArgs json.RawMessage) (Response, error) {
	switch op.Kind {
	case schema.KindSync:
		var args engine.SyncArgs
		if err := unmarshalArgs(rawArgs, &args); err != nil {
			return Response{}, err
		}
		page, err := d.engine.Sync(ctx, op.Entity, args)
		if err != nil {
			return Response{}, err
		}
		return Response{Data: page}, nil
	case schema.KindCreate, schema.KindUpdate, schema.KindDelete:
		var args mutationArgs
		if err := unmarshalArgs(rawArgs, &args); err != nil {
			return Response{}, err
		}
		if args.Input == nil {
			args.Input = map[string]any{}
		}
		result, err := d.mutate(ctx, op, args.Input)
		if err != nil {
			return Response{}, err
		}
		if result.Conflict {
			return Response{
				Data:         result.Record,
				ErrorMessage: "Conflict",
				ErrorKind:    KindConflict,
			}, nil
		}
		if result.Record == nil {
			return Response{Data: nil}, nil
		}
		return Response{Data: result.Record}, nil
	default:
		return Response{}, fmt.Errorf("unhandled operation kind %v", op.Kind)
	}
}

func (d *Dispatcher) mutate(ctx context.Context, op schema.Operation, input map[string]any) (*engine.MutationResult, error) {
	switch op.Kind {
	case schema.KindCreate:
		return d.engine.Create(ctx, op.Entity, input)
	case schema.KindUpdate:
		return d.engine.Update(ctx, op.Entity, input)
	default:
		return d.engine.Delete(ctx, op.Entity, input)
	}
}

func unmarshalArgs(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}
