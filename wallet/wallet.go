// Package wallet manages the secp256k1 keys callers sign requests with.
package wallet

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// AddressPrefix starts every caller address.
const AddressPrefix = "flag"

// Wallet holds one secp256k1 keypair and the address derived from it.
type Wallet struct {
	Address string
	PubKey  []byte // compressed
	PrivKey *secp256k1.PrivateKey
}

// GenerateWallet creates a wallet with a fresh key.
func GenerateWallet() (*Wallet, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate secp256k1 key: %w", err)
	}
	return FromPrivateKey(priv.Serialize()), nil
}

// FromPrivateKey rebuilds a wallet from a serialized private key.
func FromPrivateKey(b []byte) *Wallet {
	priv := secp256k1.PrivKeyFromBytes(b)
	pub := priv.PubKey().SerializeCompressed()
	return &Wallet{
		Address: AddressFromPubKey(pub),
		PubKey:  pub,
		PrivKey: priv,
	}
}

// AddressFromPubKey derives the address of a compressed public key: the
// prefix followed by the first 20 bytes of its sha256, hex encoded.
func AddressFromPubKey(pub []byte) string {
	h := sha256.Sum256(pub)
	return AddressPrefix + hex.EncodeToString(h[:20])
}

// Sign returns a DER signature over sha256(data).
func (w *Wallet) Sign(data []byte) []byte {
	h := sha256.Sum256(data)
	return ecdsa.Sign(w.PrivKey, h[:]).Serialize()
}

// Verify checks a DER signature over sha256(data) against a compressed or
// uncompressed public key.
func Verify(pub, data, sig []byte) bool {
	key, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return false
	}
	s, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	h := sha256.Sum256(data)
	return s.Verify(h[:], key)
}

// SaveToFile writes the wallet as unencrypted JSON.
func (w *Wallet) SaveToFile(filename string) error {
	data := map[string]string{
		"address":  w.Address,
		"pub_key":  hex.EncodeToString(w.PubKey),
		"priv_key": hex.EncodeToString(w.PrivKey.Serialize()),
	}
	file, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, file, 0600)
}

// LoadWallet reads a wallet written by SaveToFile.
func LoadWallet(filename string) (*Wallet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse wallet %s: %w", filename, err)
	}
	priv, err := hex.DecodeString(m["priv_key"])
	if err != nil || len(priv) != secp256k1.PrivKeyBytesLen {
		return nil, fmt.Errorf("wallet %s: invalid private key", filename)
	}
	w := FromPrivateKey(priv)
	if addr := m["address"]; addr != "" && addr != w.Address {
		return nil, fmt.Errorf("wallet %s: address %s does not match key", filename, addr)
	}
	return w, nil
}
