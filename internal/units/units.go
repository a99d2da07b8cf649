// Package units converts between human-facing amounts and dates and the
// ledger's native fixed-point integers and epoch timestamps.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits in the ledger's fixed-point amounts.
const Scale = 18

// InvalidDate is returned by ToCalendarDate for timestamps that cannot be rendered.
const InvalidDate = "Invalid Date"

// ErrMalformedAmount indicates a decimal string that is not a valid non-negative
// amount at the ledger's scale.
var ErrMalformedAmount = errors.New("malformed amount")

var plainDecimal = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)

// maxDateMillis bounds the representable calendar range to +/-100,000,000 days
// around the epoch.
var maxDateMillis = big.NewInt(8_640_000_000_000_000)

// TimestampUnit tells ToCalendarDate how to read a ledger timestamp.
type TimestampUnit int

const (
	Seconds TimestampUnit = iota
	Milliseconds
)

// ToLedgerAmount parses s into the ledger's fixed-point integer representation.
// Trailing fractional zeros are ignored when counting digits against Scale.
func ToLedgerAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if !plainDecimal.MatchString(s) {
		return nil, fmt.Errorf("%w: %q is not a non-negative decimal", ErrMalformedAmount, s)
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		fraction := strings.TrimRight(s[i+1:], "0")
		if len(fraction) > Scale {
			return nil, fmt.Errorf("%w: %q has more than %d fractional digits", ErrMalformedAmount, s, Scale)
		}
		if strings.HasSuffix(s, ".") {
			s += "0"
		}
		if i == 0 {
			s = "0" + s
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAmount, err)
	}
	amount := d.Shift(Scale).BigInt()
	if amount.BitLen() > 256 {
		return nil, fmt.Errorf("%w: %q does not fit in uint256", ErrMalformedAmount, s)
	}
	return amount, nil
}

// ToDecimalString renders a fixed-point integer as its canonical decimal string:
// no trailing fractional zeros and no trailing dot. A nil amount renders as "0".
func ToDecimalString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -Scale).String()
}

// ToCalendarDate renders a ledger timestamp as an en-US short date (M/D/YYYY)
// in loc. Unrepresentable timestamps yield InvalidDate rather than an error.
func ToCalendarDate(ts *big.Int, unit TimestampUnit, loc *time.Location) string {
	t, ok := toTime(ts, unit)
	if !ok {
		return InvalidDate
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("1/2/2006")
}

// SecondsToTime converts a ledger timestamp in seconds to a UTC time. The
// boolean is false when the value is outside the renderable range.
func SecondsToTime(ts *big.Int) (time.Time, bool) {
	t, ok := toTime(ts, Seconds)
	if !ok {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func toTime(ts *big.Int, unit TimestampUnit) (time.Time, bool) {
	if ts == nil {
		return time.Time{}, false
	}
	millis := new(big.Int).Set(ts)
	if unit == Seconds {
		millis.Mul(millis, big.NewInt(1000))
	}
	if new(big.Int).Abs(millis).Cmp(maxDateMillis) > 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(millis.Int64()), true
}
