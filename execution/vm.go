// Package execution hosts a contract: it hands each call a freshly scoped
// view of the instance's storage, serializes calls, and reports results.
package execution

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/soden46/hyperlux-flagstore/contract"
	"github.com/soden46/hyperlux-flagstore/events"
	"github.com/soden46/hyperlux-flagstore/storage"
)

// Entry point names, used in logs, events and metrics.
const (
	EntryInstantiate = "instantiate"
	EntryExecute     = "execute"
	EntryQuery       = "query"
)

// Contract is what the VM runs. The native flag store and the wasm loader
// both satisfy it.
type Contract interface {
	Instantiate(env contract.Env, store storage.Store, msg []byte) (contract.Response, error)
	Execute(env contract.Env, store storage.Store, msg []byte) (contract.Response, error)
	Query(env contract.Env, store storage.ReadonlyStore, msg []byte) ([]byte, error)
}

// VM runs one contract instance over a namespaced region of a backend.
type VM struct {
	mu       sync.Mutex
	address  string
	store    storage.Store
	contract Contract
	height   uint64

	logger    *slog.Logger
	publisher events.Publisher
	metrics   *Metrics
	now       func() time.Time
}

// Option configures a VM.
type Option func(*VM)

func WithLogger(l *slog.Logger) Option {
	return func(vm *VM) { vm.logger = l }
}

func WithPublisher(p events.Publisher) Option {
	return func(vm *VM) { vm.publisher = p }
}

func WithMetrics(m *Metrics) Option {
	return func(vm *VM) { vm.metrics = m }
}

// WithClock replaces time.Now for the Env handed to the contract.
func WithClock(now func() time.Time) Option {
	return func(vm *VM) { vm.now = now }
}

// InstanceNamespace is the backend namespace owned by the instance at address.
func InstanceNamespace(address string) []byte {
	return []byte("contract/" + address)
}

// NewVM hosts c at address, keeping its state in backend.
func NewVM(backend storage.Store, address string, c Contract, opts ...Option) *VM {
	vm := &VM{
		address:   address,
		store:     storage.NewPrefixStore(InstanceNamespace(address), backend),
		contract:  c,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		publisher: events.Nop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// Address returns the instance address.
func (vm *VM) Address() string { return vm.address }

func (vm *VM) env(sender string) contract.Env {
	vm.height++
	return contract.Env{
		BlockHeight: vm.height,
		Time:        vm.now().UTC(),
		Contract:    vm.address,
		Sender:      sender,
	}
}

// Instantiate runs the contract's instantiate entry point.
func (vm *VM) Instantiate(ctx context.Context, sender string, msg []byte) (contract.Response, error) {
	return vm.mutate(ctx, EntryInstantiate, sender, msg, vm.contract.Instantiate)
}

// Execute runs the contract's execute entry point.
func (vm *VM) Execute(ctx context.Context, sender string, msg []byte) (contract.Response, error) {
	return vm.mutate(ctx, EntryExecute, sender, msg, vm.contract.Execute)
}

type mutateFunc func(env contract.Env, store storage.Store, msg []byte) (contract.Response, error)

func (vm *VM) mutate(ctx context.Context, entry, sender string, msg []byte, fn mutateFunc) (contract.Response, error) {
	if err := ctx.Err(); err != nil {
		return contract.Response{}, err
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()

	start := time.Now()
	env := vm.env(sender)
	// writes reach the backend only when the call succeeds
	cache := storage.NewCacheStore(vm.store)
	scope := storage.NewCallScope(cache)
	resp, err := fn(env, scope, msg)
	scope.Release()
	if err == nil {
		if err = cache.Write(); err != nil {
			err = fmt.Errorf("commit: %w", err)
		}
	} else {
		cache.Discard()
	}
	vm.metrics.observe(entry, start, err)

	if err != nil {
		vm.logger.Warn("contract call failed", "entry", entry, "contract", vm.address, "error", err)
		return contract.Response{}, fmt.Errorf("%s: %w", entry, err)
	}
	vm.logger.Debug("contract call", "entry", entry, "contract", vm.address, "height", env.BlockHeight, "log", len(resp.Log))

	ev := events.Event{
		Contract:   vm.address,
		Entry:      entry,
		Sender:     sender,
		Height:     env.BlockHeight,
		Attributes: resp.Log,
	}
	if err := vm.publisher.Publish(ctx, ev); err != nil {
		vm.logger.Warn("publish event", "entry", entry, "error", err)
	}
	return resp, nil
}

// Query runs the contract's query entry point against a read-only view.
func (vm *VM) Query(ctx context.Context, msg []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()

	start := time.Now()
	env := contract.Env{
		BlockHeight: vm.height,
		Time:        vm.now().UTC(),
		Contract:    vm.address,
	}
	scope := storage.NewCallScope(storage.ReadOnly(vm.store))
	out, err := vm.contract.Query(env, scope, msg)
	scope.Release()
	vm.metrics.observe(EntryQuery, start, err)

	if err != nil {
		vm.logger.Warn("contract call failed", "entry", EntryQuery, "contract", vm.address, "error", err)
		return nil, fmt.Errorf("%s: %w", EntryQuery, err)
	}
	vm.logger.Debug("contract call", "entry", EntryQuery, "contract", vm.address, "bytes", len(out))
	return out, nil
}
