package signer

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"

	"github.com/vitwit/currency/types"
)

// SolanaSigner signs messages with an ed25519 key.
type SolanaSigner struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

var _ Signer = (*SolanaSigner)(nil)

// NewSolanaSigner creates a signer from a base58-encoded private key.
func NewSolanaSigner(privateKeyBase58 string) (*SolanaSigner, error) {
	key, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, malformedKey(types.CurrencySolana, err)
	}
	return NewSolanaSignerFromKey(key)
}

// NewSolanaSignerFromKeygenFile reads a solana-keygen JSON file (an array of 64 bytes).
func NewSolanaSignerFromKeygenFile(path string) (*SolanaSigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewCurrencyError(types.ErrCodeConfigError, types.CurrencySolana, "unable to read keygen file", err)
	}

	var keyBytes []byte
	if err := json.Unmarshal(data, &keyBytes); err != nil {
		return nil, malformedKey(types.CurrencySolana, fmt.Errorf("invalid keygen JSON: %w", err))
	}

	return NewSolanaSignerFromKey(solana.PrivateKey(keyBytes))
}

func NewSolanaSignerFromKey(key solana.PrivateKey) (*SolanaSigner, error) {
	if len(key) != 64 {
		return nil, malformedKey(types.CurrencySolana, fmt.Errorf("invalid key length %d (expected 64 bytes)", len(key)))
	}
	return &SolanaSigner{
		privateKey: key,
		publicKey:  key.PublicKey(),
	}, nil
}

func (s *SolanaSigner) Sign(message []byte) ([]byte, error) {
	sig, err := s.privateKey.Sign(message)
	if err != nil {
		return nil, err
	}
	return sig[:], nil
}

func (s *SolanaSigner) PublicKey() []byte {
	return s.publicKey.Bytes()
}

func (s *SolanaSigner) Address() solana.PublicKey {
	return s.publicKey
}

func (s *SolanaSigner) Type() SignatureType { return SignatureEd25519 }
func (s *SolanaSigner) SignatureLength() int { return 64 }
func (s *SolanaSigner) PublicKeyLength() int { return 32 }
