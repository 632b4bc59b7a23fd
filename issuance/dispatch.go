package issuance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dikanevn/bf/collab"
	"github.com/dikanevn/bf/compliance"
	"github.com/dikanevn/bf/storage"
)

// Outcome is what one dispatched operation produced.
type Outcome struct {
	Opcode    byte
	Operation string
	// Result is set for issuance variants.
	Result *Result
	// Refund is the deposit returned by a reclaim.
	Refund uint64
	// Withdrawn is the amount moved by a withdrawal.
	Withdrawn uint64
	// Edition is the number printed by a print operation.
	Edition uint64
}

type Dispatcher struct {
	pipeline *Pipeline
	host     collab.Host
	mode     compliance.ComplianceMode
	logger   *zap.Logger
	metrics  *Metrics
}

type DispatcherOption func(*Dispatcher)

func WithMode(m compliance.ComplianceMode) DispatcherOption {
	return func(d *Dispatcher) { d.mode = m }
}

func WithLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher runs operations of p on host. The default mode is strict.
func NewDispatcher(p *Pipeline, host collab.Host, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{pipeline: p, host: host, mode: compliance.Strict, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch decodes input as [opcode:1][payload] and runs the operation as
// one atomic attempt on the host.
func (d *Dispatcher) Dispatch(ctx context.Context, input []byte, inv Invocation) (*Outcome, error) {
	start := time.Now()
	out, err := d.dispatch(ctx, input, inv)
	op := "unknown"
	if out != nil {
		op = out.Operation
	}
	d.metrics.observe(op, err, time.Since(start))
	d.logOutcome(out, inv, err)
	return out, err
}

func (d *Dispatcher) dispatch(ctx context.Context, input []byte, inv Invocation) (*Outcome, error) {
	if len(input) == 0 {
		return nil, newError(KindParse, CodeEmptyInput, "empty instruction input")
	}
	op, payload := input[0], input[1:]
	out := &Outcome{Opcode: op}

	if v, ok := VariantByOpcode(op); ok {
		out.Operation = v.Name
		if v.Retired && !d.mode.AllowsRetired() {
			return out, newError(KindParse, CodeRetiredVariant, fmt.Sprintf("%s is retired in %s mode", v.Name, d.mode))
		}
		if v.Schema != nil && !d.mode.AllowsSchema(*v.Schema) {
			return out, newError(KindParse, CodeRetiredVariant, fmt.Sprintf("%s records are refused in %s mode", v.Schema.Name, d.mode))
		}
		claim, err := ParseClaim(v.Leaf, payload)
		if err != nil {
			return out, err
		}
		err = d.host.Execute(ctx, func(ctx context.Context, env collab.Env) error {
			res, err := d.pipeline.Issue(ctx, env, v, inv, claim)
			out.Result = res
			return err
		})
		if err != nil {
			err = commitError(err)
			if out.Result != nil {
				out.Result.fail(KindOf(err))
			}
			return out, err
		}
		return out, nil
	}

	switch op {
	case OpInitialize:
		out.Operation = "initialize"
		return out, nil
	case OpReclaim:
		out.Operation = "reclaim"
		req, err := ParseReclaim(payload)
		if err != nil {
			return out, err
		}
		err = d.host.Execute(ctx, func(ctx context.Context, env collab.Env) error {
			refund, err := d.pipeline.Reclaim(ctx, env, inv, req)
			out.Refund = refund
			return err
		})
		if err != nil {
			out.Refund = 0
			return out, commitError(err)
		}
		return out, nil
	case OpPrintEdition:
		out.Operation = "print-edition"
		req, err := ParsePrint(payload)
		if err != nil {
			return out, err
		}
		err = d.host.Execute(ctx, func(ctx context.Context, env collab.Env) error {
			return d.pipeline.PrintEdition(ctx, env, inv, req)
		})
		if err != nil {
			return out, commitError(err)
		}
		out.Edition = req.Edition
		return out, nil
	case OpWithdraw:
		out.Operation = "withdraw"
		req, err := ParseWithdraw(payload)
		if err != nil {
			return out, err
		}
		err = d.host.Execute(ctx, func(ctx context.Context, env collab.Env) error {
			return d.pipeline.Withdraw(ctx, env, inv, req)
		})
		if err != nil {
			return out, commitError(err)
		}
		out.Withdrawn = req.Amount
		return out, nil
	case OpUpdateRecord:
		out.Operation = "update-record"
		req, err := ParseUpdate(payload)
		if err != nil {
			return out, err
		}
		err = d.host.Execute(ctx, func(ctx context.Context, env collab.Env) error {
			return d.pipeline.UpdateRecord(ctx, env, inv, req)
		})
		if err != nil {
			return out, commitError(err)
		}
		return out, nil
	}
	return nil, newError(KindParse, CodeUnknownOpcode, fmt.Sprintf("unknown opcode %d", op))
}

// commitError classifies errors raised by the host rather than the pipeline.
// Losing a create-once race on the record address is a replay; losing a
// race to close a record means there is nothing left to reclaim.
func commitError(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, storage.ErrAlreadyAllocated):
		return wrapError(KindAlreadyIssued, CodeAlreadyIssued, "record created concurrently", err)
	case errors.Is(err, storage.ErrNotFound):
		return wrapError(KindNotIssued, CodeNotIssued, "record closed concurrently", err)
	}
	return wrapError(KindInternal, CodeInternal, "commit attempt", err)
}

func (d *Dispatcher) logOutcome(out *Outcome, inv Invocation, err error) {
	fields := []zap.Field{zap.String("claimant", inv.Claimant.ToBase58())}
	if out != nil {
		fields = append(fields, zap.String("operation", out.Operation))
		if r := out.Result; r != nil {
			fields = append(fields,
				zap.String("attempt_id", r.AttemptID),
				zap.String("variant", r.Variant),
				zap.Uint8("round", r.Round),
			)
		}
	}
	if err != nil {
		fields = append(fields, zap.String("code", Code(err)), zap.Error(err))
		d.logger.Warn("operation rejected", fields...)
		return
	}
	d.logger.Info("operation committed", fields...)
}

func (d *Dispatcher) Pipeline() *Pipeline { return d.pipeline }

func (d *Dispatcher) Mode() compliance.ComplianceMode { return d.mode }
