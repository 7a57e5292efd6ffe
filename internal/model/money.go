package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Money is a fixed-point amount with two fractional digits, stored as an
// integer number of cents.  It maps to DECIMAL(9,2) columns and is encoded
// in JSON as a string such as "120.00" so that clients never see binary
// floating point values.
type Money int64

// ErrInvalidMoney is returned when a textual amount cannot be parsed.
var ErrInvalidMoney = errors.New("invalid money amount")

// Cents builds a Money value from an integer number of cents.
func Cents(c int64) Money { return Money(c) }

// Mul returns the amount multiplied by n (e.g. unit price × seats).
func (m Money) Mul(n int) Money { return m * Money(n) }

// String renders the amount with exactly two fractional digits.
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MaxMoney is the largest amount a DECIMAL(9,2) column holds.
const MaxMoney Money = 999999999

// ParseMoney parses "120", "120.5" or "120.50".  More than two fractional
// digits are rejected rather than rounded, as is any amount whose magnitude
// exceeds MaxMoney.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if !digits(whole) || !digits(frac) {
		return 0, ErrInvalidMoney
	}
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return 0, ErrInvalidMoney
	}
	if whole == "" && !hasFrac {
		return 0, ErrInvalidMoney
	}
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > int64(MaxMoney/100) {
		return 0, ErrInvalidMoney
	}
	var f int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		f, _ = strconv.ParseInt(frac, 10, 64)
	}
	v := Money(w*100 + f)
	if v > MaxMoney {
		return 0, ErrInvalidMoney
	}
	if neg {
		v = -v
	}
	return v, nil
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Value implements driver.Valuer; MySQL accepts the decimal string form.
func (m Money) Value() (driver.Value, error) { return m.String(), nil }

// Scan implements sql.Scanner for DECIMAL columns, which the MySQL driver
// returns as []byte.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = 0
		return nil
	case []byte:
		p, err := ParseMoney(string(v))
		if err != nil {
			return err
		}
		*m = p
		return nil
	case string:
		p, err := ParseMoney(v)
		if err != nil {
			return err
		}
		*m = p
		return nil
	case int64:
		*m = Money(v * 100)
		return nil
	case float64:
		p, err := ParseMoney(strconv.FormatFloat(v, 'f', 2, 64))
		if err != nil {
			return err
		}
		*m = p
		return nil
	}
	return fmt.Errorf("money: unsupported scan type %T", src)
}

// MarshalJSON encodes the amount as a quoted decimal string.
func (m Money) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }

// UnmarshalJSON accepts either a quoted decimal string or a bare number.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*m = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	p, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = p
	return nil
}
