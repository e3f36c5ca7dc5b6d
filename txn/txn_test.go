package txn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/webpa-gateway/codec"
	"github.com/c360/webpa-gateway/parambus"
)

func openedBus(t *testing.T) *parambus.MockBus {
	t.Helper()
	b := parambus.NewMockBus()
	require.NoError(t, b.Open(context.Background(), "test"))
	return b
}

func TestNonAtomicMixedResultsYieldsPartial(t *testing.T) {
	ctx := context.Background()
	b := openedBus(t)
	b.Seed("Device.A", "0", codec.TypeInt)

	tr := New([]Param{
		{Name: "Device.A", Value: "1", Type: codec.TypeInt, Op: OpSet},
		{Name: "Device.Missing.Table.1.", Op: OpDelete},
	}, DefaultConfig(), "user-1", "test")

	e := NewEngine(b, NewMemoryStore(), nil)
	outcome, err := e.Run(ctx, tr)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, outcome.Status)
}

func TestAtomicRollbackOnFailureRestoresBackupAndReportsFailure(t *testing.T) {
	ctx := context.Background()
	b := openedBus(t)
	b.Seed("Device.A", "orig-a", codec.TypeString)
	b.Seed("Device.B", "orig-b", codec.TypeString)

	var publishedCount int
	var lastOutcome Outcome
	cfg := DefaultConfig()
	cfg.Atomic = true

	tr := New([]Param{
		{Name: "Device.A", Value: "new-a", Type: codec.TypeString, Op: OpSet},
		{Name: "Device.Missing.Row.", Op: OpDelete}, // fails: nonexistent row
		{Name: "Device.B", Value: "new-b", Type: codec.TypeString, Op: OpSet},
	}, cfg, "user-1", "test")

	e := NewEngine(b, NewMemoryStore(), func(o Outcome) {
		publishedCount++
		lastOutcome = o
	})

	outcome, err := e.Run(ctx, tr)
	require.NoError(t, err)
	assert.Equal(t, StatusFailure, outcome.Status)
	assert.Equal(t, 1, outcome.RolledBack)
	assert.Equal(t, 1, publishedCount)
	assert.Equal(t, StatusFailure, lastOutcome.Status)

	va, err := b.Get(ctx, "Device.A")
	require.NoError(t, err)
	assert.Equal(t, "orig-a", va, "atomic rollback must restore the pre-transaction value")
}

func TestAtomicNeverYieldsPartial(t *testing.T) {
	ctx := context.Background()
	b := openedBus(t)
	b.Seed("Device.A", "0", codec.TypeInt)

	cfg := DefaultConfig()
	cfg.Atomic = true
	tr := New([]Param{
		{Name: "Device.A", Value: "1", Type: codec.TypeInt, Op: OpSet},
		{Name: "Device.Missing.Row.", Op: OpDelete},
	}, cfg, "user-1", "test")

	e := NewEngine(b, NewMemoryStore(), nil)
	outcome, err := e.Run(ctx, tr)
	require.NoError(t, err)
	assert.NotEqual(t, StatusPartial, outcome.Status)
}

func TestAddOnExistingParameterConflicts(t *testing.T) {
	ctx := context.Background()
	b := openedBus(t)
	b.Seed("Device.Existing", "already-set", codec.TypeString)

	tr := New([]Param{
		{Name: "Device.Existing", Value: "new", Type: codec.TypeString, Op: OpAdd},
	}, DefaultConfig(), "user-1", "test")

	e := NewEngine(b, NewMemoryStore(), nil)
	outcome, err := e.Run(ctx, tr)
	require.NoError(t, err)
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, 409, outcome.Results[0].Status)
}

func TestValidationRejectsEmptyParamName(t *testing.T) {
	ctx := context.Background()
	b := openedBus(t)

	tr := New([]Param{{Name: "", Value: "x", Op: OpSet}}, DefaultConfig(), "user-1", "test")
	e := NewEngine(b, NewMemoryStore(), nil)

	_, err := e.Run(ctx, tr)
	require.Error(t, err)
}

func TestValidationRejectsOversizedTransaction(t *testing.T) {
	ctx := context.Background()
	b := openedBus(t)

	cfg := DefaultConfig()
	cfg.MaxTransactionSize = 1
	tr := New([]Param{
		{Name: "Device.A", Value: "1", Op: OpSet},
		{Name: "Device.B", Value: "2", Op: OpSet},
	}, cfg, "user-1", "test")
	e := NewEngine(b, NewMemoryStore(), nil)

	_, err := e.Run(ctx, tr)
	require.Error(t, err)
}
