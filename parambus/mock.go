package parambus

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/c360/webpa-gateway/codec"
	"github.com/c360/webpa-gateway/errors"
)

// node is one entry in the mock's dotted-path parameter tree.
type node struct {
	value string
	typ   codec.WireType
	attr  Attribute
}

// subscription tracks the refcount and callbacks registered against a
// single event name, matching the parambus guarantee that only the first
// subscribe for a name registers with the underlying bus and only the last
// unsubscribe tears it down.
type subscription struct {
	count int
	cbs   []EventCallback
}

// MockBus is an in-memory parameter tree keyed by dotted path, used as the
// mode=mock backend and as the test double for the translator, transaction,
// and event packages. It never talks to a real bus, so every operation
// succeeds or fails purely on the state held here.
type MockBus struct {
	mu     sync.RWMutex
	opened bool
	nodes  map[string]*node
	subs   map[string]*subscription
	rowSeq map[string]int // next row index per table path
}

// NewMockBus returns an empty MockBus.
func NewMockBus() *MockBus {
	return &MockBus{
		nodes:  make(map[string]*node),
		subs:   make(map[string]*subscription),
		rowSeq: make(map[string]int),
	}
}

// Seed installs name with value/typ without going through Set, for test
// fixture setup.
func (m *MockBus) Seed(name, value string, typ codec.WireType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[name] = &node{value: value, typ: typ, attr: Attribute{Access: AccessReadWrite}}
}

func (m *MockBus) Open(ctx context.Context, component string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = true
	return nil
}

func (m *MockBus) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = false
	return nil
}

func (m *MockBus) requireOpen() error {
	if !m.opened {
		return errors.WithKind(errors.KindUnavailable, errors.ErrBusUnavailable, "parambus", "mock")
	}
	return nil
}

func (m *MockBus) Get(ctx context.Context, name string) (string, error) {
	tv, err := m.GetTyped(ctx, name)
	if err != nil {
		return "", err
	}
	return tv.Value, nil
}

func (m *MockBus) GetTyped(ctx context.Context, name string) (codec.TypedValue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.requireOpen(); err != nil {
		return codec.TypedValue{}, err
	}
	n, ok := m.nodes[name]
	if !ok {
		return codec.TypedValue{}, errors.WithKind(errors.KindNotFound, errors.ErrElementNotFound, "parambus", "Get")
	}
	return codec.TypedValue{Value: n.value, Type: n.typ}, nil
}

func (m *MockBus) Set(ctx context.Context, name, value string) error {
	return m.SetTyped(ctx, name, codec.TypedValue{Value: value, Type: codec.TypeString})
}

func (m *MockBus) SetTyped(ctx context.Context, name string, value codec.TypedValue) error {
	decoded, err := codec.Decode(value.Value, value.Type)
	if err != nil {
		return err
	}
	canonValue, canonType := codec.Encode(decoded)

	m.mu.Lock()
	if err := m.requireOpen(); err != nil {
		m.mu.Unlock()
		return err
	}
	n, existed := m.nodes[name]
	if !existed {
		n = &node{attr: Attribute{Access: AccessReadWrite}}
		m.nodes[name] = n
	}
	if n.attr.Access == AccessReadOnly {
		m.mu.Unlock()
		return errors.WithKind(errors.KindForbidden, errors.ErrForbiddenAuth, "parambus", "Set")
	}
	n.value = canonValue
	n.typ = canonType
	m.mu.Unlock()

	m.notify(name, Event{Name: name, Category: CategoryValueChange, NewValue: canonValue, Type: canonType})
	return nil
}

// ExpandWildcard enumerates fully-qualified names under prefix, which must
// end in '.'. An empty result is not itself an error; callers decide how to
// treat zero matches.
func (m *MockBus) ExpandWildcard(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.requireOpen(); err != nil {
		return nil, err
	}
	if !strings.HasSuffix(prefix, ".") {
		return nil, errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "parambus", "ExpandWildcard")
	}
	var out []string
	for name := range m.nodes {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MockBus) AddTableRow(ctx context.Context, tablePath string, row []RowParam) (string, error) {
	m.mu.Lock()
	if err := m.requireOpen(); err != nil {
		m.mu.Unlock()
		return "", err
	}
	if !strings.HasSuffix(tablePath, ".") {
		m.mu.Unlock()
		return "", errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "parambus", "AddTableRow")
	}
	idx := m.rowSeq[tablePath] + 1
	m.rowSeq[tablePath] = idx
	rowPath := tablePath + strconv.Itoa(idx) + "."
	m.nodes[rowPath] = &node{typ: codec.TypeGroup, attr: Attribute{Access: AccessReadWrite}}
	m.mu.Unlock()

	m.notify(rowPath, Event{Name: rowPath, Category: CategoryObjectCreated})

	for _, p := range row {
		full := rowPath + p.Name
		if err := m.SetTyped(ctx, full, codec.TypedValue{Value: p.Value, Type: p.Type}); err != nil {
			return rowPath, errors.WithKind(errors.KindUnprocessable, err, "parambus", "AddTableRow")
		}
	}
	return rowPath, nil
}

func (m *MockBus) DeleteTableRow(ctx context.Context, rowPath string) error {
	m.mu.Lock()
	if err := m.requireOpen(); err != nil {
		m.mu.Unlock()
		return err
	}
	found := false
	for name := range m.nodes {
		if name == rowPath || strings.HasPrefix(name, rowPath) {
			delete(m.nodes, name)
			found = true
		}
	}
	m.mu.Unlock()
	if !found {
		return errors.WithKind(errors.KindNotFound, errors.ErrElementNotFound, "parambus", "DeleteTableRow")
	}
	m.notify(rowPath, Event{Name: rowPath, Category: CategoryObjectDeleted})
	return nil
}

// ReplaceTable deletes every existing row under tablePath then adds each of
// rows, in order. It is not atomic: a failure partway through leaves the
// table in a mixed state, matching the underlying bus's own lack of a
// table-wide transaction primitive.
func (m *MockBus) ReplaceTable(ctx context.Context, tablePath string, rows [][]RowParam) error {
	existing, err := m.ExpandWildcard(ctx, tablePath)
	if err != nil {
		return err
	}
	rowPrefixes := map[string]bool{}
	for _, name := range existing {
		rest := strings.TrimPrefix(name, tablePath)
		if i := strings.Index(rest, "."); i >= 0 {
			rowPrefixes[tablePath+rest[:i+1]] = true
		}
	}
	for rp := range rowPrefixes {
		if err := m.DeleteTableRow(ctx, rp); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if _, err := m.AddTableRow(ctx, tablePath, row); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockBus) GetAttributes(ctx context.Context, name string) (Attribute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.requireOpen(); err != nil {
		return Attribute{}, err
	}
	n, ok := m.nodes[name]
	if !ok {
		return Attribute{}, errors.WithKind(errors.KindNotFound, errors.ErrElementNotFound, "parambus", "GetAttributes")
	}
	return n.attr, nil
}

func (m *MockBus) SetAttributes(ctx context.Context, name string, attr Attribute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireOpen(); err != nil {
		return err
	}
	n, ok := m.nodes[name]
	if !ok {
		return errors.WithKind(errors.KindNotFound, errors.ErrElementNotFound, "parambus", "SetAttributes")
	}
	n.attr = attr
	return nil
}

func (m *MockBus) Subscribe(ctx context.Context, eventName string, cb EventCallback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireOpen(); err != nil {
		return err
	}
	s, ok := m.subs[eventName]
	if !ok {
		s = &subscription{}
		m.subs[eventName] = s
	}
	s.count++
	s.cbs = append(s.cbs, cb)
	return nil
}

func (m *MockBus) Unsubscribe(ctx context.Context, eventName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireOpen(); err != nil {
		return err
	}
	s, ok := m.subs[eventName]
	if !ok || s.count == 0 {
		return errors.WithKind(errors.KindNotFound, fmt.Errorf("no subscription for %q", eventName), "parambus", "Unsubscribe")
	}
	s.count--
	if s.count == 0 {
		delete(m.subs, eventName)
	}
	return nil
}

// TestAndSet compares the current canonical rendering of name against
// expected and, iff equal, applies newValue. The compare-and-apply step
// holds the bus lock for its whole duration so a concurrent Set cannot
// interleave between the check and the write.
func (m *MockBus) TestAndSet(ctx context.Context, name, expected, newValue string, wireType codec.WireType) error {
	decoded, err := codec.Decode(newValue, wireType)
	if err != nil {
		return err
	}
	canonValue, canonType := codec.Encode(decoded)
	expectedCanon, _ := codec.Encode(codec.TypedValue{Value: expected, Type: wireType})

	m.mu.Lock()
	if err := m.requireOpen(); err != nil {
		m.mu.Unlock()
		return err
	}
	n, ok := m.nodes[name]
	current := ""
	if ok {
		current = n.value
	}
	currentCanon, _ := codec.Encode(codec.TypedValue{Value: current, Type: wireType})
	if currentCanon != expectedCanon {
		m.mu.Unlock()
		return errors.WithKind(errors.KindPreconditionFailed, errors.ErrPreconditionMismatch, "parambus", "TestAndSet")
	}
	if !ok {
		n = &node{attr: Attribute{Access: AccessReadWrite}}
		m.nodes[name] = n
	}
	n.value = canonValue
	n.typ = canonType
	m.mu.Unlock()

	m.notify(name, Event{Name: name, Category: CategoryValueChange, NewValue: canonValue, Type: canonType})
	return nil
}

// notify delivers ev to every callback subscribed either to the exact name
// or to a wildcard prefix that contains it. Callbacks run synchronously on
// the caller's goroutine in this mock, unlike the real bus which delivers
// on its own callback thread; tests that need that distinction should wrap
// calls through a channel.
func (m *MockBus) notify(name string, ev Event) {
	m.mu.RLock()
	var targets []EventCallback
	for eventName, s := range m.subs {
		if eventName == name || (strings.HasSuffix(eventName, ".") && strings.HasPrefix(name, eventName)) {
			targets = append(targets, s.cbs...)
		}
	}
	m.mu.RUnlock()
	for _, cb := range targets {
		cb(ev)
	}
}
