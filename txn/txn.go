// Package txn implements the Transaction Engine: validate, snapshot,
// apply, classify, rollback, publish over a sequence of parameter
// mutations, with all-or-nothing semantics when the transaction is
// atomic.
package txn

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/c360/webpa-gateway/codec"
	"github.com/c360/webpa-gateway/errors"
	"github.com/c360/webpa-gateway/parambus"
)

// ParamOp is the mutation kind for one transaction parameter.
type ParamOp string

const (
	OpSet     ParamOp = "SET"
	OpGet     ParamOp = "GET"
	OpDelete  ParamOp = "DELETE"
	OpReplace ParamOp = "REPLACE"
	OpAdd     ParamOp = "ADD"
)

// Param is one target of a transaction.
type Param struct {
	Name  string
	Value string
	Type  codec.WireType
	Op    ParamOp
}

// Result is the per-param outcome recorded during Apply.
type Result struct {
	Name    string
	Status  int
	Message string
}

// Status is the overall transaction outcome.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailure Status = "Failure"
	StatusPartial Status = "Partial"
)

// Config holds the per-transaction tunables.
type Config struct {
	MaxTransactionSize int
	EnableRollback     bool
	EnableValidation   bool
	Atomic             bool
}

// DefaultConfig returns sane defaults: validation and rollback on,
// non-atomic.
func DefaultConfig() Config {
	return Config{MaxTransactionSize: 64, EnableRollback: true, EnableValidation: true, Atomic: false}
}

// Transaction is one constructed, as-yet-unapplied bulk operation.
type Transaction struct {
	ID       string
	Params   []Param
	Atomic   bool
	UserID   string
	Source   string
	Config   Config
}

// New constructs a Transaction with a generated id.
func New(params []Param, cfg Config, userID, source string) *Transaction {
	return &Transaction{
		ID:     uuid.New().String(),
		Params: params,
		Atomic: cfg.Atomic,
		UserID: userID,
		Source: source,
		Config: cfg,
	}
}

// Outcome is the result of Engine.Run.
type Outcome struct {
	TransactionID string
	Status        Status
	Results       []Result
	RolledBack    int
}

// PublishFunc is invoked once per completed transaction, after rollback (if
// any). It mirrors the teacher's "hit performance sink" step; failures are
// not fatal to the transaction outcome.
type PublishFunc func(Outcome)

// Engine drives the validate→snapshot→apply→classify→rollback→publish
// algorithm against a Bus, using store for rollback snapshots.
type Engine struct {
	Bus     parambus.Bus
	Store   SnapshotStore
	Publish PublishFunc
}

// NewEngine constructs an Engine. store may be nil if rollback is never
// requested by any transaction run through it (Run returns an Internal
// error if a rollback-enabled atomic transaction is attempted without
// one).
func NewEngine(bus parambus.Bus, store SnapshotStore, publish PublishFunc) *Engine {
	return &Engine{Bus: bus, Store: store, Publish: publish}
}

// Run executes the full algorithm and returns the outcome. It never
// returns a Go error for transaction-level failures — those are captured
// in Outcome.Status and per-param Results — only for engine misuse (e.g.
// rollback requested with no store configured).
func (e *Engine) Run(ctx context.Context, t *Transaction) (Outcome, error) {
	if t.Config.EnableValidation {
		if err := validate(t); err != nil {
			return Outcome{TransactionID: t.ID, Status: StatusFailure}, err
		}
	}

	needsSnapshot := t.Atomic && t.Config.EnableRollback
	if needsSnapshot {
		if e.Store == nil {
			return Outcome{}, errors.WithKind(errors.KindInternal, fmt.Errorf("rollback enabled but no snapshot store configured"), "txn", "Run")
		}
		if err := e.snapshot(ctx, t); err != nil {
			return Outcome{TransactionID: t.ID, Status: StatusFailure}, err
		}
	}

	results, aborted := e.apply(ctx, t)

	status, rolledBack := classify(t, results, aborted)

	if status == StatusFailure && needsSnapshot {
		if err := e.rollback(ctx, t); err != nil {
			results = append(results, Result{Name: "__rollback__", Status: errors.KindInternal.HTTPStatus(), Message: err.Error()})
		} else {
			rolledBack = 1
		}
	}

	outcome := Outcome{TransactionID: t.ID, Status: status, Results: results, RolledBack: rolledBack}
	if e.Publish != nil {
		e.Publish(outcome)
	}
	return outcome, nil
}

func validate(t *Transaction) error {
	if t.Config.MaxTransactionSize > 0 && len(t.Params) > t.Config.MaxTransactionSize {
		return errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "txn", "validate")
	}
	for _, p := range t.Params {
		if p.Name == "" {
			return errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "txn", "validate")
		}
		if (p.Op == OpSet || p.Op == OpReplace || p.Op == OpAdd) && p.Value == "" {
			return errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "txn", "validate")
		}
	}
	return nil
}

func (e *Engine) snapshot(ctx context.Context, t *Transaction) error {
	backup := make(map[string]string, len(t.Params))
	for _, p := range t.Params {
		v, err := e.Bus.Get(ctx, p.Name)
		if err != nil {
			v = ""
		}
		backup[p.Name] = v
	}
	return e.Store.Save(ctx, t.ID, backup)
}

func (e *Engine) rollback(ctx context.Context, t *Transaction) error {
	backup, err := e.Store.Load(ctx, t.ID)
	if err != nil {
		return errors.WithKind(errors.KindInternal, err, "txn", "rollback")
	}
	for name, value := range backup {
		if err := e.Bus.Set(ctx, name, value); err != nil {
			return errors.WithKind(errors.KindInternal, err, "txn", "rollback")
		}
	}
	return nil
}

// apply iterates params, invoking the bus per param. For an atomic
// transaction, apply stops at the first failure (aborted=true).
func (e *Engine) apply(ctx context.Context, t *Transaction) ([]Result, bool) {
	results := make([]Result, 0, len(t.Params))
	for _, p := range t.Params {
		res := e.applyOne(ctx, p)
		results = append(results, res)
		if t.Atomic && res.Status >= 300 {
			return results, true
		}
	}
	return results, false
}

func (e *Engine) applyOne(ctx context.Context, p Param) Result {
	switch p.Op {
	case OpAdd:
		if existing, err := e.Bus.Get(ctx, p.Name); err == nil && existing != "" {
			return Result{Name: p.Name, Status: errors.KindConflict.HTTPStatus(), Message: "parameter already exists"}
		}
		if err := e.Bus.SetTyped(ctx, p.Name, codec.TypedValue{Value: p.Value, Type: p.Type}); err != nil {
			return Result{Name: p.Name, Status: errors.ClassifyKind(err).HTTPStatus(), Message: err.Error()}
		}
		return Result{Name: p.Name, Status: 200}
	case OpSet, OpReplace:
		if err := e.Bus.SetTyped(ctx, p.Name, codec.TypedValue{Value: p.Value, Type: p.Type}); err != nil {
			return Result{Name: p.Name, Status: errors.ClassifyKind(err).HTTPStatus(), Message: err.Error()}
		}
		return Result{Name: p.Name, Status: 200}
	case OpDelete:
		if err := e.Bus.DeleteTableRow(ctx, p.Name); err != nil {
			return Result{Name: p.Name, Status: errors.ClassifyKind(err).HTTPStatus(), Message: err.Error()}
		}
		return Result{Name: p.Name, Status: 200}
	case OpGet:
		if _, err := e.Bus.Get(ctx, p.Name); err != nil {
			return Result{Name: p.Name, Status: errors.ClassifyKind(err).HTTPStatus(), Message: err.Error()}
		}
		return Result{Name: p.Name, Status: 200}
	default:
		return Result{Name: p.Name, Status: errors.KindInvalidRequest.HTTPStatus(), Message: "unknown op"}
	}
}

func classify(t *Transaction, results []Result, aborted bool) (Status, int) {
	if t.Atomic {
		if aborted {
			return StatusFailure, 0
		}
		for _, r := range results {
			if r.Status >= 300 {
				return StatusFailure, 0
			}
		}
		return StatusSuccess, 0
	}

	successes, failures := 0, 0
	for _, r := range results {
		if r.Status >= 300 {
			failures++
		} else {
			successes++
		}
	}
	switch {
	case failures == 0:
		return StatusSuccess, 0
	case successes == 0:
		return StatusFailure, 0
	default:
		return StatusPartial, 0
	}
}
