package signer

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/vitwit/currency/types"
)

// ArweaveSigner signs with an RSA key using RSA-PSS over SHA-256, as Arweave requires.
type ArweaveSigner struct {
	privateKey *rsa.PrivateKey
}

var _ Signer = (*ArweaveSigner)(nil)

// jwk is the JSON Web Key layout of an Arweave wallet file.
type jwk struct {
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
	D   string `json:"d"`
	P   string `json:"p"`
	Q   string `json:"q"`
	Dp  string `json:"dp"`
	Dq  string `json:"dq"`
	Qi  string `json:"qi"`
}

func NewArweaveSigner(key *rsa.PrivateKey) *ArweaveSigner {
	return &ArweaveSigner{privateKey: key}
}

func NewArweaveSignerFromFile(path string) (*ArweaveSigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewCurrencyError(types.ErrCodeConfigError, types.CurrencyArweave, "unable to read wallet file", err)
	}
	return NewArweaveSignerFromJWK(data)
}

// NewArweaveSignerFromJWK parses an RSA private key in JWK form.
func NewArweaveSignerFromJWK(data []byte) (*ArweaveSigner, error) {
	var k jwk
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, malformedKey(types.CurrencyArweave, err)
	}
	if k.Kty != "RSA" {
		return nil, malformedKey(types.CurrencyArweave, fmt.Errorf("unexpected key type %q", k.Kty))
	}

	fields := map[string]string{"n": k.N, "e": k.E, "d": k.D, "p": k.P, "q": k.Q}
	ints := make(map[string]*big.Int, len(fields))
	for name, v := range fields {
		n, err := decodeBase64URLInt(v)
		if err != nil {
			return nil, malformedKey(types.CurrencyArweave, fmt.Errorf("field %s: %w", name, err))
		}
		ints[name] = n
	}

	if !ints["e"].IsInt64() {
		return nil, malformedKey(types.CurrencyArweave, fmt.Errorf("public exponent too large"))
	}

	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: ints["n"], E: int(ints["e"].Int64())},
		D:         ints["d"],
		Primes:    []*big.Int{ints["p"], ints["q"]},
	}
	if err := key.Validate(); err != nil {
		return nil, malformedKey(types.CurrencyArweave, err)
	}
	key.Precompute()

	return &ArweaveSigner{privateKey: key}, nil
}

func (s *ArweaveSigner) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	return rsa.SignPSS(rand.Reader, s.privateKey, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
}

// PublicKey returns the RSA modulus, which Arweave calls the wallet owner.
func (s *ArweaveSigner) PublicKey() []byte {
	return s.privateKey.N.Bytes()
}

func (s *ArweaveSigner) Type() SignatureType { return SignatureArweave }
func (s *ArweaveSigner) SignatureLength() int { return s.privateKey.Size() }
func (s *ArweaveSigner) PublicKeyLength() int { return s.privateKey.Size() }

// VerifyArweave checks an Arweave signature against an owner modulus.
func VerifyArweave(owner, message, signature []byte) error {
	pub := &rsa.PublicKey{N: new(big.Int).SetBytes(owner), E: 65537}
	digest := sha256.Sum256(message)
	return rsa.VerifyPSS(pub, crypto.SHA256, digest[:], signature, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
}

func decodeBase64URLInt(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("missing value")
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}
