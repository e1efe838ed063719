package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/scrypt"
)

// KeystoreVersion is the keystore format written by SaveKeystore.
const KeystoreVersion = 1

// ErrInvalidPassword is returned when a keystore does not decrypt.
var ErrInvalidPassword = errors.New("invalid keystore password")

// scrypt cost used for new keystores; existing files carry their own.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16
)

// Keystore is the on-disk form of an encrypted wallet.
type Keystore struct {
	Version    int       `json:"version"`
	Address    string    `json:"address"`
	KDF        KDFParams `json:"kdf"`
	Cipher     string    `json:"cipher"`
	Nonce      string    `json:"nonce"`
	CipherText string    `json:"ciphertext"`
}

// KDFParams records how the encryption key was derived from the password.
type KDFParams struct {
	Name string `json:"name"`
	Salt string `json:"salt"`
	N    int    `json:"n"`
	R    int    `json:"r"`
	P    int    `json:"p"`
}

func (k KDFParams) aead(password string) (cipher.AEAD, error) {
	if k.Name != "scrypt" {
		return nil, fmt.Errorf("unsupported kdf %q", k.Name)
	}
	salt, err := hex.DecodeString(k.Salt)
	if err != nil {
		return nil, fmt.Errorf("kdf salt: %w", err)
	}
	key, err := scrypt.Key([]byte(password), salt, k.N, k.R, k.P, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// SaveKeystore writes the wallet to filename, sealed with AES-256-GCM under
// a scrypt-derived key.
func (w *Wallet) SaveKeystore(filename, password string) error {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("read salt: %w", err)
	}
	kdf := KDFParams{Name: "scrypt", Salt: hex.EncodeToString(salt), N: scryptN, R: scryptR, P: scryptP}
	gcm, err := kdf.aead(password)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("read nonce: %w", err)
	}

	ks := Keystore{
		Version:    KeystoreVersion,
		Address:    w.Address,
		KDF:        kdf,
		Cipher:     "aes-256-gcm",
		Nonce:      hex.EncodeToString(nonce),
		CipherText: hex.EncodeToString(gcm.Seal(nil, nonce, w.PrivKey.Serialize(), nil)),
	}
	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0600)
}

// LoadKeystore opens a keystore written by SaveKeystore.
func LoadKeystore(filename, password string) (*Wallet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var ks Keystore
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, fmt.Errorf("parse keystore %s: %w", filename, err)
	}
	if ks.Version != KeystoreVersion {
		return nil, fmt.Errorf("keystore %s: unsupported version %d", filename, ks.Version)
	}
	if ks.Cipher != "aes-256-gcm" {
		return nil, fmt.Errorf("keystore %s: unsupported cipher %q", filename, ks.Cipher)
	}
	nonce, err := hex.DecodeString(ks.Nonce)
	if err != nil {
		return nil, fmt.Errorf("keystore %s: %w", filename, err)
	}
	sealed, err := hex.DecodeString(ks.CipherText)
	if err != nil {
		return nil, fmt.Errorf("keystore %s: %w", filename, err)
	}

	gcm, err := ks.KDF.aead(password)
	if err != nil {
		return nil, fmt.Errorf("keystore %s: %w", filename, err)
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("keystore %s: nonce has %d bytes", filename, len(nonce))
	}
	priv, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrInvalidPassword
	}
	if len(priv) != secp256k1.PrivKeyBytesLen {
		return nil, fmt.Errorf("keystore %s: invalid private key", filename)
	}

	w := FromPrivateKey(priv)
	if ks.Address != "" && ks.Address != w.Address {
		return nil, fmt.Errorf("keystore %s: address %s does not match key", filename, ks.Address)
	}
	return w, nil
}
