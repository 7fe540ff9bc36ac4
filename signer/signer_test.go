package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/currency/types"
)

// testPrivateKey is the Foundry/Anvil first default account private key.
// This is a well-known test key - NEVER use in production.
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

const testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func TestEthereumSigner(t *testing.T) {
	s, err := NewEthereumSigner("0x" + testPrivateKey)
	require.NoError(t, err)

	assert.Equal(t, testAddress, s.Address().Hex())
	assert.Len(t, s.PublicKey(), s.PublicKeyLength())
	assert.Equal(t, SignatureEthereum, s.Type())

	digest := crypto.Keccak256([]byte("fund bundler"))
	sig, err := s.Sign(digest)
	require.NoError(t, err)
	require.Len(t, sig, s.SignatureLength())

	pub, err := crypto.SigToPub(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), crypto.PubkeyToAddress(*pub))

	_, err = s.Sign([]byte("not a digest"))
	assert.Error(t, err)
}

func TestEthereumSignerInvalidKey(t *testing.T) {
	_, err := NewEthereumSigner("zz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrMalformedKey))
}

func TestSolanaSigner(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	s, err := NewSolanaSigner(key.String())
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), s.Address())

	msg := []byte("solana message")
	sig, err := s.Sign(msg)
	require.NoError(t, err)
	require.Len(t, sig, s.SignatureLength())
	assert.True(t, ed25519.Verify(ed25519.PublicKey(s.PublicKey()), msg, sig))
}

func TestSolanaSignerFromKeygenFile(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	s, err := NewSolanaSignerFromKeygenFile(path)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), s.Address())

	require.NoError(t, os.WriteFile(path, []byte("[1,2,3]"), 0o600))
	_, err = NewSolanaSignerFromKeygenFile(path)
	assert.True(t, errors.Is(err, types.ErrMalformedKey))
}

func TestCosmosSigner(t *testing.T) {
	s, err := NewCosmosSigner(testPrivateKey)
	require.NoError(t, err)

	assert.Len(t, s.PublicKey(), s.PublicKeyLength())

	msg := []byte("cosmos sign doc")
	sig, err := s.Sign(msg)
	require.NoError(t, err)
	assert.Len(t, sig, s.SignatureLength())
	assert.True(t, s.PubKey().VerifySignature(msg, sig))

	_, err = NewCosmosSigner("abcd")
	assert.True(t, errors.Is(err, types.ErrMalformedKey))
}

func TestArweaveSignerJWK(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	enc := func(n *big.Int) string { return base64.RawURLEncoding.EncodeToString(n.Bytes()) }
	wallet, err := json.Marshal(map[string]string{
		"kty": "RSA",
		"n":   enc(key.N),
		"e":   enc(big.NewInt(int64(key.E))),
		"d":   enc(key.D),
		"p":   enc(key.Primes[0]),
		"q":   enc(key.Primes[1]),
	})
	require.NoError(t, err)

	s, err := NewArweaveSignerFromJWK(wallet)
	require.NoError(t, err)
	assert.Equal(t, key.N.Bytes(), s.PublicKey())
	assert.Equal(t, 256, s.SignatureLength())

	msg := []byte("deep hash")
	sig, err := s.Sign(msg)
	require.NoError(t, err)
	require.NoError(t, VerifyArweave(s.PublicKey(), msg, sig))
	assert.Error(t, VerifyArweave(s.PublicKey(), []byte("other"), sig))
}

func TestArweaveSignerRejectsBadJWK(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "{"},
		{"wrong kty", `{"kty":"EC"}`},
		{"missing fields", `{"kty":"RSA","n":"AQAB"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewArweaveSignerFromJWK([]byte(tt.data))
			assert.True(t, errors.Is(err, types.ErrMalformedKey))
		})
	}
}

func TestFromConfig(t *testing.T) {
	s, err := FromConfig(types.ClientConfig{Currency: types.CurrencyErc20, KeyHex: testPrivateKey})
	require.NoError(t, err)
	assert.Equal(t, SignatureEthereum, s.Type())

	keyPath := filepath.Join(t.TempDir(), "cosmos.key")
	require.NoError(t, os.WriteFile(keyPath, []byte(testPrivateKey+"\n"), 0o600))
	s, err = FromConfig(types.ClientConfig{Currency: types.CurrencyCosmos, KeyFile: keyPath})
	require.NoError(t, err)
	assert.Equal(t, SignatureCosmos, s.Type())

	_, err = FromConfig(types.ClientConfig{Currency: types.CurrencyArweave})
	assert.True(t, errors.Is(err, types.ErrConfigError))

	_, err = FromConfig(types.ClientConfig{})
	assert.True(t, errors.Is(err, types.ErrUnsupportedCurrency))
}
