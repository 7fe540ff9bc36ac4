package signer

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"

	"github.com/vitwit/currency/types"
)

// CosmosSigner signs with a secp256k1 key the way the Cosmos SDK does:
// SHA-256 of the message, 64-byte [R || S] signature, compressed public key.
type CosmosSigner struct {
	privateKey *secp256k1.PrivKey
}

var _ Signer = (*CosmosSigner)(nil)

func NewCosmosSigner(privateKeyHex string) (*CosmosSigner, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, malformedKey(types.CurrencyCosmos, err)
	}
	if len(b) != secp256k1.PrivKeySize {
		return nil, malformedKey(types.CurrencyCosmos, fmt.Errorf("invalid key length %d", len(b)))
	}
	return &CosmosSigner{privateKey: &secp256k1.PrivKey{Key: b}}, nil
}

func NewCosmosSignerFromKey(key *secp256k1.PrivKey) *CosmosSigner {
	return &CosmosSigner{privateKey: key}
}

func (s *CosmosSigner) Sign(message []byte) ([]byte, error) {
	return s.privateKey.Sign(message)
}

// PublicKey returns the 33-byte compressed public key.
func (s *CosmosSigner) PublicKey() []byte {
	return s.privateKey.PubKey().Bytes()
}

func (s *CosmosSigner) PubKey() cryptotypes.PubKey {
	return s.privateKey.PubKey()
}

func (s *CosmosSigner) Type() SignatureType { return SignatureCosmos }
func (s *CosmosSigner) SignatureLength() int { return 64 }
func (s *CosmosSigner) PublicKeyLength() int { return secp256k1.PubKeySize }
