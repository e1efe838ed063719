//go:build wasmvm

package execution

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/soden46/hyperlux-flagstore/contract"
	"github.com/soden46/hyperlux-flagstore/storage"
)

// ErrWASMDisabled is never returned when built with the wasmvm tag.
var ErrWASMDisabled = errors.New("WASM VM is disabled")

// WASMContract runs a contract compiled to wasm.
//
// The guest exports memory, allocate(size i32) -> ptr i32, and the entry
// points instantiate/execute/query(envPtr, envLen, msgPtr, msgLen i32) -> i64.
// Entry points return a region packed as ptr<<32|len pointing at a JSON
// envelope {"ok": ...} or {"error": "..."}. The host provides, under "env":
//
//	db_read(keyPtr, keyLen i32) -> i64     packed region, or -1 when absent
//	db_write(keyPtr, keyLen, valPtr, valLen i32)
//	db_remove(keyPtr, keyLen i32)
type WASMContract struct {
	mu       sync.Mutex
	engine   *wasmer.Engine
	store    *wasmer.Store
	module   *wasmer.Module
	instance *wasmer.Instance
	memory   *wasmer.Memory
	allocate wasmer.NativeFunction

	// state of the call in flight
	current storage.Store
	hostErr error
}

type envelope struct {
	Ok    json.RawMessage `json:"ok"`
	Error *string         `json:"error"`
}

// LoadWASM compiles and instantiates the wasm file at path.
func LoadWASM(path string) (*WASMContract, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wasm file: %w", err)
	}
	return NewWASMContract(bytes)
}

// NewWASMContract compiles and instantiates wasm bytes.
func NewWASMContract(code []byte) (*WASMContract, error) {
	c := &WASMContract{}
	c.engine = wasmer.NewEngine()
	c.store = wasmer.NewStore(c.engine)

	module, err := wasmer.NewModule(c.store, code)
	if err != nil {
		return nil, fmt.Errorf("failed to compile wasm: %w", err)
	}
	c.module = module

	importObject := wasmer.NewImportObject()
	importObject.Register("env", map[string]wasmer.IntoExtern{
		"db_read": wasmer.NewFunction(c.store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes(wasmer.I64)),
			c.dbRead),
		"db_write": wasmer.NewFunction(c.store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32), wasmer.NewValueTypes()),
			c.dbWrite),
		"db_remove": wasmer.NewFunction(c.store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes()),
			c.dbRemove),
	})

	inst, err := wasmer.NewInstance(module, importObject)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate wasm: %w", err)
	}
	c.instance = inst

	if c.memory, err = inst.Exports.GetMemory("memory"); err != nil {
		return nil, fmt.Errorf("wasm memory export: %w", err)
	}
	if c.allocate, err = inst.Exports.GetFunction("allocate"); err != nil {
		return nil, fmt.Errorf("wasm allocate export: %w", err)
	}
	for _, name := range []string{EntryInstantiate, EntryExecute, EntryQuery} {
		if _, err := inst.Exports.GetFunction(name); err != nil {
			return nil, fmt.Errorf("function %s not found", name)
		}
	}
	return c, nil
}

func (c *WASMContract) Instantiate(env contract.Env, store storage.Store, msg []byte) (contract.Response, error) {
	return c.mutate(EntryInstantiate, env, store, msg)
}

func (c *WASMContract) Execute(env contract.Env, store storage.Store, msg []byte) (contract.Response, error) {
	return c.mutate(EntryExecute, env, store, msg)
}

func (c *WASMContract) Query(env contract.Env, store storage.ReadonlyStore, msg []byte) ([]byte, error) {
	out, err := c.call(EntryQuery, env, storage.ReadOnly(store), msg)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

func (c *WASMContract) mutate(entry string, env contract.Env, store storage.Store, msg []byte) (contract.Response, error) {
	out, err := c.call(entry, env, store, msg)
	if err != nil {
		return contract.Response{}, err
	}
	var resp contract.Response
	if err := json.Unmarshal(out, &resp); err != nil {
		return contract.Response{}, fmt.Errorf("decode %s response: %w", entry, err)
	}
	return resp, nil
}

func (c *WASMContract) call(entry string, env contract.Env, store storage.Store, msg []byte) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = store
	c.hostErr = nil
	defer func() { c.current = nil }()

	fn, err := c.instance.Exports.GetFunction(entry)
	if err != nil {
		return nil, fmt.Errorf("function %s not found", entry)
	}
	envJSON, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	envPtr, err := c.write(envJSON)
	if err != nil {
		return nil, err
	}
	msgPtr, err := c.write(msg)
	if err != nil {
		return nil, err
	}

	res, err := fn(envPtr, int32(len(envJSON)), msgPtr, int32(len(msg)))
	if c.hostErr != nil {
		return nil, c.hostErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to call wasm function: %w", err)
	}
	region, ok := res.(int64)
	if !ok {
		return nil, fmt.Errorf("%s returned %T, want i64", entry, res)
	}
	raw, err := c.read(region)
	if err != nil {
		return nil, err
	}

	var result envelope
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", entry, err)
	}
	if result.Error != nil {
		return nil, errors.New(*result.Error)
	}
	return result.Ok, nil
}

// write copies b into guest memory and returns its address.
func (c *WASMContract) write(b []byte) (int32, error) {
	res, err := c.allocate(int32(len(b)))
	if err != nil {
		return 0, fmt.Errorf("wasm allocate: %w", err)
	}
	ptr, ok := res.(int32)
	if !ok {
		return 0, fmt.Errorf("allocate returned %T, want i32", res)
	}
	data := c.memory.Data()
	if int(ptr) < 0 || int(ptr)+len(b) > len(data) {
		return 0, fmt.Errorf("allocate returned out of bounds pointer %d", ptr)
	}
	copy(data[ptr:], b)
	return ptr, nil
}

func (c *WASMContract) slice(ptr, n int32) ([]byte, error) {
	data := c.memory.Data()
	if ptr < 0 || n < 0 || int(ptr)+int(n) > len(data) {
		return nil, fmt.Errorf("region %d+%d out of bounds", ptr, n)
	}
	out := make([]byte, n)
	copy(out, data[ptr:ptr+n])
	return out, nil
}

func (c *WASMContract) read(region int64) ([]byte, error) {
	ptr := int32(uint64(region) >> 32)
	n := int32(uint32(region))
	return c.slice(ptr, n)
}

func pack(ptr, n int32) int64 {
	return int64(uint64(uint32(ptr))<<32 | uint64(uint32(n)))
}

func (c *WASMContract) fail(err error) ([]wasmer.Value, error) {
	c.hostErr = err
	return nil, err
}

func (c *WASMContract) dbRead(args []wasmer.Value) ([]wasmer.Value, error) {
	key, err := c.slice(args[0].I32(), args[1].I32())
	if err != nil {
		return c.fail(err)
	}
	val, err := c.current.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return []wasmer.Value{wasmer.NewI64(int64(-1))}, nil
	}
	if err != nil {
		return c.fail(err)
	}
	ptr, err := c.write(val)
	if err != nil {
		return c.fail(err)
	}
	return []wasmer.Value{wasmer.NewI64(pack(ptr, int32(len(val))))}, nil
}

func (c *WASMContract) dbWrite(args []wasmer.Value) ([]wasmer.Value, error) {
	key, err := c.slice(args[0].I32(), args[1].I32())
	if err != nil {
		return c.fail(err)
	}
	val, err := c.slice(args[2].I32(), args[3].I32())
	if err != nil {
		return c.fail(err)
	}
	if err := c.current.Set(key, val); err != nil {
		return c.fail(err)
	}
	return []wasmer.Value{}, nil
}

func (c *WASMContract) dbRemove(args []wasmer.Value) ([]wasmer.Value, error) {
	key, err := c.slice(args[0].I32(), args[1].I32())
	if err != nil {
		return c.fail(err)
	}
	if err := c.current.Remove(key); err != nil {
		return c.fail(err)
	}
	return []wasmer.Value{}, nil
}
