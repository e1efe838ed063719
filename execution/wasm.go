//go:build !wasmvm

package execution

import (
	"errors"

	"github.com/soden46/hyperlux-flagstore/contract"
	"github.com/soden46/hyperlux-flagstore/storage"
)

// ErrWASMDisabled is returned when the binary was built without the wasmvm tag.
var ErrWASMDisabled = errors.New("WASM VM is disabled (stub). Build with -tags wasmvm to enable real VM")

// WASMContract is a stub so the project builds without CGO/wasmer.
type WASMContract struct{}

func LoadWASM(string) (*WASMContract, error) { return nil, ErrWASMDisabled }

func (*WASMContract) Instantiate(contract.Env, storage.Store, []byte) (contract.Response, error) {
	return contract.Response{}, ErrWASMDisabled
}

func (*WASMContract) Execute(contract.Env, storage.Store, []byte) (contract.Response, error) {
	return contract.Response{}, ErrWASMDisabled
}

func (*WASMContract) Query(contract.Env, storage.ReadonlyStore, []byte) ([]byte, error) {
	return nil, ErrWASMDisabled
}
