package types

import (
	"fmt"
	"strings"
)

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// ParseSide normalizes a user-supplied side.
func ParseSide(s string) (side Side, err error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(Buy):
		return Buy, nil
	case string(Sell):
		return Sell, nil
	default:
		return side, fmt.Errorf("invalid side %q: must be BUY or SELL", s)
	}
}

// OrderKind is the user-level order kind chosen in the trade dialog.
type OrderKind string

const (
	Market OrderKind = "MARKET"
	Limit  OrderKind = "LIMIT"
)

// Protocol order types sent to the backend.
const (
	OrderTypeFOK = "FOK" // fill-or-kill
	OrderTypeGTC = "GTC" // good-till-cancel
)

// ParseOrderKind normalizes a user-supplied order kind.
func ParseOrderKind(s string) (kind OrderKind, err error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(Market):
		return Market, nil
	case string(Limit):
		return Limit, nil
	default:
		return kind, fmt.Errorf("invalid order kind %q: must be MARKET or LIMIT", s)
	}
}

// OrderType maps the kind to the protocol order type.
// MARKET orders must fill immediately or not at all; LIMIT orders rest.
func (k OrderKind) OrderType() string {
	if k == Limit {
		return OrderTypeGTC
	}
	return OrderTypeFOK
}

// APICredentials are the user's L2 CLOB credentials.
type APICredentials struct {
	APIKey     string
	Secret     string
	Passphrase string
}

// Complete reports whether all three parts are present.
func (c *APICredentials) Complete() bool {
	return c != nil && c.APIKey != "" && c.Secret != "" && c.Passphrase != ""
}

// Identity is the connected wallet's signing address and the proxy wallet
// that holds funds and positions.
type Identity struct {
	Address      string
	ProxyAddress string
}
