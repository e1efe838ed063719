package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/soden46/hyperlux-flagstore/contract"
	"github.com/soden46/hyperlux-flagstore/wallet"
)

var (
	// ErrBadSignature is returned for a signed request that does not verify.
	ErrBadSignature = errors.New("request signature does not verify")
	// ErrWrongTarget is returned when a request was signed for another
	// entry point or contract instance.
	ErrWrongTarget = errors.New("request signed for a different target")
)

// SignedRequest is a contract message signed by its sender together with
// the entry point and contract address it is meant for.
type SignedRequest struct {
	Entry     string          `json:"entry"`
	Contract  string          `json:"contract"`
	Msg       json.RawMessage `json:"msg"`
	PubKey    []byte          `json:"pub_key"`
	Signature []byte          `json:"signature"`
}

type signDoc struct {
	Entry    string `json:"entry"`
	Contract string `json:"contract"`
	Msg      []byte `json:"msg"`
}

// signBytes is what the sender signs. Msg is carried as base64 so the
// signed bytes do not depend on its JSON formatting being preserved.
func signBytes(entry, contractAddr string, msg []byte) []byte {
	b, err := json.Marshal(signDoc{Entry: entry, Contract: contractAddr, Msg: msg})
	if err != nil {
		panic(err) // strings and bytes always marshal
	}
	return b
}

// SignRequest signs msg with w for entry on the instance at contractAddr.
func SignRequest(w *wallet.Wallet, entry, contractAddr string, msg []byte) SignedRequest {
	return SignedRequest{
		Entry:     entry,
		Contract:  contractAddr,
		Msg:       msg,
		PubKey:    w.PubKey,
		Signature: w.Sign(signBytes(entry, contractAddr, msg)),
	}
}

// Authenticate verifies req and returns the sender address.
func Authenticate(req SignedRequest) (string, error) {
	if !wallet.Verify(req.PubKey, signBytes(req.Entry, req.Contract, req.Msg), req.Signature) {
		return "", ErrBadSignature
	}
	return wallet.AddressFromPubKey(req.PubKey), nil
}

func (vm *VM) authenticate(entry string, req SignedRequest) (string, error) {
	sender, err := Authenticate(req)
	if err != nil {
		return "", err
	}
	if req.Entry != entry || req.Contract != vm.address {
		return "", fmt.Errorf("%w: signed for %s on %q, called %s on %q",
			ErrWrongTarget, req.Entry, req.Contract, entry, vm.address)
	}
	return sender, nil
}

// InstantiateSigned authenticates req and instantiates with its sender.
func (vm *VM) InstantiateSigned(ctx context.Context, req SignedRequest) (contract.Response, error) {
	sender, err := vm.authenticate(EntryInstantiate, req)
	if err != nil {
		return contract.Response{}, err
	}
	return vm.Instantiate(ctx, sender, req.Msg)
}

// ExecuteSigned authenticates req and executes with its sender.
func (vm *VM) ExecuteSigned(ctx context.Context, req SignedRequest) (contract.Response, error) {
	sender, err := vm.authenticate(EntryExecute, req)
	if err != nil {
		return contract.Response{}, err
	}
	return vm.Execute(ctx, sender, req.Msg)
}
