package commerce

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StringOrNumber decodes JSON fields that the PHP backend emits either as a
// quoted string or as a bare number (prices, folios, product ids).
type StringOrNumber string

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringOrNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = StringOrNumber(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("commerce: field is neither string nor number: %w", err)
	}
	*s = StringOrNumber(num.String())
	return nil
}

// String returns the decoded value.
func (s StringOrNumber) String() string {
	return string(s)
}

// Product is a catalog entry as returned by productos.php.
type Product struct {
	NID    StringOrNumber `json:"nid"`
	Nombre StringOrNumber `json:"nombre"`
	Marca  StringOrNumber `json:"marca"`
	Precio StringOrNumber `json:"precio"`
}

// Order is a finalized purchase as returned by compras.php.
type Order struct {
	Folio  StringOrNumber `json:"folio"`
	NID    StringOrNumber `json:"nid"`
	Nombre StringOrNumber `json:"nombre"`
	Marca  StringOrNumber `json:"marca"`
	Precio StringOrNumber `json:"precio"`
	Pago   StringOrNumber `json:"pago"`
}

// PurchaseResult is the response to a purchase submission. Folio is empty when
// the backend did not issue a reference.
type PurchaseResult struct {
	Folio   StringOrNumber `json:"folio"`
	Status  StringOrNumber `json:"status"`
	Mensaje StringOrNumber `json:"mensaje"`
}
