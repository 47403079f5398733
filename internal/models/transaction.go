package models

import "encoding/json"

const PaymentMethodCash = "cash"

// Transaction is a recorded sale. Items and Location are kept as the JSON the
// client sent; only price and qty of each item are interpreted.
type Transaction struct {
	ID            int64           `json:"id"`
	Owner         *string         `json:"owner"`
	Items         json.RawMessage `json:"items"`
	Total         float64         `json:"total"`
	ItemCount     int             `json:"itemCount"`
	PaymentMethod string          `json:"paymentMethod"`
	ProofUploaded bool            `json:"proofUploaded"`
	ProofFilename *string         `json:"proofFilename"`
	Location      json.RawMessage `json:"location"`
	Timestamp     string          `json:"timestamp"`
	Date          string          `json:"date"`
}

type LedgerSummary struct {
	Transactions int     `json:"transactions"`
	Revenue      float64 `json:"revenue"`
	ItemsSold    int     `json:"itemsSold"`
}
