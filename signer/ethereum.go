package signer

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vitwit/currency/types"
)

// EthereumSigner signs 32-byte digests with a secp256k1 key.
// Signatures are 65 bytes in [R || S || V] form with V in {0, 1}.
type EthereumSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

var _ Signer = (*EthereumSigner)(nil)

func NewEthereumSigner(privateKeyHex string) (*EthereumSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, malformedKey(types.CurrencyEthereum, err)
	}
	return NewEthereumSignerFromKey(key), nil
}

func NewEthereumSignerFromKey(key *ecdsa.PrivateKey) *EthereumSigner {
	return &EthereumSigner{
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
	}
}

func (s *EthereumSigner) Sign(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("ethereum signer expects a 32-byte digest, got %d bytes", len(digest))
	}
	return crypto.Sign(digest, s.privateKey)
}

// PublicKey returns the 65-byte uncompressed public key.
func (s *EthereumSigner) PublicKey() []byte {
	return crypto.FromECDSAPub(&s.privateKey.PublicKey)
}

func (s *EthereumSigner) Address() common.Address {
	return s.address
}

func (s *EthereumSigner) Type() SignatureType { return SignatureEthereum }
func (s *EthereumSigner) SignatureLength() int { return crypto.SignatureLength }
func (s *EthereumSigner) PublicKeyLength() int { return 65 }
