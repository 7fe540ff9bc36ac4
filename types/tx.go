package types

import "math/big"

// Tx is the chain-agnostic transaction descriptor produced by currency adapters.
// Amount, Fee and BlockHeight are in the base unit of the currency (wei, lamports, winston, ...).
type Tx struct {
	ID          string       `json:"id"`
	Currency    CurrencyKind `json:"currency"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	Amount      *big.Int     `json:"amount"`
	Fee         *big.Int     `json:"fee"`
	BlockHeight *big.Int     `json:"blockHeight,omitempty"`
	Pending     bool         `json:"pending"`
	Confirmed   bool         `json:"confirmed"`

	// Raw is the signed, serialized transaction as accepted by Broadcast.
	Raw []byte `json:"raw,omitempty"`
}

// Clone returns a deep copy so cached descriptors cannot be mutated by callers.
func (t *Tx) Clone() *Tx {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Amount = cloneBig(t.Amount)
	cp.Fee = cloneBig(t.Fee)
	cp.BlockHeight = cloneBig(t.BlockHeight)
	if t.Raw != nil {
		cp.Raw = append([]byte(nil), t.Raw...)
	}
	return &cp
}

func cloneBig(n *big.Int) *big.Int {
	if n == nil {
		return nil
	}
	return new(big.Int).Set(n)
}
