package ledger

import (
	"encoding/json"
	"fmt"

	"zenith/internal/core"
)

// The persisted format is the ordered list of transactions and nothing else.
// It carries no schema version.

func encode(txns []core.Transaction) ([]byte, error) {
	if txns == nil {
		txns = []core.Transaction{}
	}
	data, err := json.Marshal(txns)
	if err != nil {
		return nil, fmt.Errorf("encode transactions: %w", err)
	}
	return data, nil
}

func decode(data []byte) ([]core.Transaction, error) {
	var txns []core.Transaction
	if err := json.Unmarshal(data, &txns); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	return txns, nil
}
