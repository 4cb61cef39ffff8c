package domain

import "time"

// Balance es un dato de referencia de solo lectura por usuario.
type Balance struct {
	UserID      string  `json:"user_id"`
	Amount      float64 `json:"amount"`
	AccountType string  `json:"account_type"`
}

type Transaction struct {
	UserID   string    `json:"user_id"`
	Date     time.Time `json:"date"`
	Merchant string    `json:"merchant"`
	Amount   float64   `json:"amount"`
}

// Policy es una entrada de informacion general del banco (fees, rates, hours).
type Policy struct {
	Topic   string `json:"topic"`
	Content string `json:"content"`
}
