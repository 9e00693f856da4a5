package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

// OrderDetail is one order's share inside a settlement, kept as a JSON
// column so a settlement carries the exact per-order amounts it was built
// from.
type OrderDetail struct {
	OrderId int             `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
}

type OrderDetailList []OrderDetail

func (l OrderDetailList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *OrderDetailList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

func (l OrderDetailList) OrderIds() []int {
	ids := make([]int, 0, len(l))
	for _, d := range l {
		ids = append(ids, d.OrderId)
	}
	return ids
}

func (l OrderDetailList) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, d := range l {
		total = total.Add(d.Amount)
	}
	return total
}

// JSONMap is a free-form JSON object column (dispute details, report
// breakdowns, statement deduction details).
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(value interface{}) error {
	return scanJSON(value, m)
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return errors.New("unsupported type for JSON column scan")
	}
}
