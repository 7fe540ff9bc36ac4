package types

import (
	"database/sql/driver"
	"fmt"
)

// CurrencyKind identifies the network a currency adapter targets.
//
// The integer value is persisted and sent over the wire, so existing values
// must never be renumbered or reused. The zero value is not a valid kind.
type CurrencyKind int

const (
	CurrencyArweave  CurrencyKind = 1
	CurrencySolana   CurrencyKind = 2
	CurrencyEthereum CurrencyKind = 3
	CurrencyErc20    CurrencyKind = 4
	CurrencyCosmos   CurrencyKind = 5
)

var currencyNames = map[CurrencyKind]string{
	CurrencyArweave:  "arweave",
	CurrencySolana:   "solana",
	CurrencyEthereum: "ethereum",
	CurrencyErc20:    "erc20",
	CurrencyCosmos:   "cosmos",
}

var currencyByName = map[string]CurrencyKind{
	"arweave":  CurrencyArweave,
	"solana":   CurrencySolana,
	"ethereum": CurrencyEthereum,
	"erc20":    CurrencyErc20,
	"cosmos":   CurrencyCosmos,
}

// AllCurrencyKinds returns every supported kind ordered by discriminant.
func AllCurrencyKinds() []CurrencyKind {
	return []CurrencyKind{
		CurrencyArweave,
		CurrencySolana,
		CurrencyEthereum,
		CurrencyErc20,
		CurrencyCosmos,
	}
}

// ParseCurrencyKind parses the canonical lowercase name of a currency.
// Matching is case-sensitive: "Arweave" and "ARWEAVE" are rejected.
func ParseCurrencyKind(s string) (CurrencyKind, error) {
	kind, ok := currencyByName[s]
	if !ok {
		return 0, &CurrencyError{
			Code:    ErrCodeUnsupportedCurrency,
			Message: fmt.Sprintf("invalid or unsupported currency: %q", s),
		}
	}
	return kind, nil
}

// MustParseCurrencyKind is like ParseCurrencyKind but panics on error.
func MustParseCurrencyKind(s string) CurrencyKind {
	kind, err := ParseCurrencyKind(s)
	if err != nil {
		panic(err)
	}
	return kind
}

// CurrencyKindFromCode maps a persisted discriminant back to its kind.
func CurrencyKindFromCode(code int) (CurrencyKind, error) {
	kind := CurrencyKind(code)
	if !kind.IsValid() {
		return 0, &CurrencyError{
			Code:    ErrCodeUnsupportedCurrency,
			Message: fmt.Sprintf("unknown currency discriminant: %d", code),
		}
	}
	return kind, nil
}

func (k CurrencyKind) IsValid() bool {
	_, ok := currencyNames[k]
	return ok
}

// Code returns the stable integer discriminant.
func (k CurrencyKind) Code() int {
	return int(k)
}

func (k CurrencyKind) String() string {
	if name, ok := currencyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("currency(%d)", int(k))
}

func (k CurrencyKind) MarshalText() ([]byte, error) {
	if !k.IsValid() {
		return nil, &CurrencyError{
			Code:    ErrCodeUnsupportedCurrency,
			Message: fmt.Sprintf("unknown currency discriminant: %d", int(k)),
		}
	}
	return []byte(k.String()), nil
}

func (k *CurrencyKind) UnmarshalText(text []byte) error {
	kind, err := ParseCurrencyKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

func (k CurrencyKind) MarshalYAML() (interface{}, error) {
	text, err := k.MarshalText()
	if err != nil {
		return nil, err
	}
	return string(text), nil
}

func (k *CurrencyKind) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return k.UnmarshalText([]byte(s))
}

// Value stores the discriminant, not the name.
func (k CurrencyKind) Value() (driver.Value, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("cannot store invalid currency kind %d", int(k))
	}
	return int64(k), nil
}

func (k *CurrencyKind) Scan(src interface{}) error {
	var code int64
	switch v := src.(type) {
	case int64:
		code = v
	case int32:
		code = int64(v)
	case int:
		code = int64(v)
	default:
		return fmt.Errorf("cannot scan %T into CurrencyKind", src)
	}

	kind, err := CurrencyKindFromCode(int(code))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}
