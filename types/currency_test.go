package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestParseCurrencyKind_RoundTrip(t *testing.T) {
	for _, kind := range AllCurrencyKinds() {
		parsed, err := ParseCurrencyKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}
}

func TestParseCurrencyKind_Rejects(t *testing.T) {
	for _, name := range []string{"", "ARWEAVE", "Solana", "bitcoin", " ethereum", "erc-20"} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCurrencyKind(name)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsupportedCurrency))
		})
	}
}

func TestCurrencyKind_Discriminants(t *testing.T) {
	assert.Equal(t, 1, CurrencyArweave.Code())
	assert.Equal(t, 2, CurrencySolana.Code())
	assert.Equal(t, 3, CurrencyEthereum.Code())
	assert.Equal(t, 4, CurrencyErc20.Code())
	assert.Equal(t, 5, CurrencyCosmos.Code())

	for _, kind := range AllCurrencyKinds() {
		back, err := CurrencyKindFromCode(kind.Code())
		require.NoError(t, err)
		assert.Equal(t, kind, back)
	}

	_, err := CurrencyKindFromCode(0)
	assert.True(t, errors.Is(err, ErrUnsupportedCurrency))
	_, err = CurrencyKindFromCode(6)
	assert.True(t, errors.Is(err, ErrUnsupportedCurrency))
}

func TestCurrencyKind_InvalidString(t *testing.T) {
	var zero CurrencyKind
	assert.False(t, zero.IsValid())
	assert.Equal(t, "currency(0)", zero.String())
}

func TestMustParseCurrencyKind(t *testing.T) {
	assert.Equal(t, CurrencyErc20, MustParseCurrencyKind("erc20"))
	assert.Panics(t, func() { MustParseCurrencyKind("dogecoin") })
}

func TestCurrencyKind_JSON(t *testing.T) {
	type payload struct {
		Currency CurrencyKind `json:"currency"`
	}

	data, err := json.Marshal(payload{Currency: CurrencySolana})
	require.NoError(t, err)
	assert.JSONEq(t, `{"currency":"solana"}`, string(data))

	var out payload
	require.NoError(t, json.Unmarshal([]byte(`{"currency":"cosmos"}`), &out))
	assert.Equal(t, CurrencyCosmos, out.Currency)

	assert.Error(t, json.Unmarshal([]byte(`{"currency":"Cosmos"}`), &out))

	_, err = json.Marshal(payload{})
	assert.Error(t, err)
}

func TestCurrencyKind_YAML(t *testing.T) {
	data, err := yaml.Marshal(map[string]CurrencyKind{"currency": CurrencyArweave})
	require.NoError(t, err)
	assert.Equal(t, "currency: arweave\n", string(data))

	var out struct {
		Currency CurrencyKind `yaml:"currency"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("currency: ethereum\n"), &out))
	assert.Equal(t, CurrencyEthereum, out.Currency)

	assert.Error(t, yaml.Unmarshal([]byte("currency: ether\n"), &out))
}

func TestCurrencyKind_SQL(t *testing.T) {
	v, err := CurrencyErc20.Value()
	require.NoError(t, err)
	assert.Equal(t, int64(4), v)

	_, err = CurrencyKind(9).Value()
	assert.Error(t, err)

	var k CurrencyKind
	require.NoError(t, k.Scan(int64(5)))
	assert.Equal(t, CurrencyCosmos, k)

	assert.Error(t, k.Scan(int64(42)))
	assert.Error(t, k.Scan("cosmos"))
}
