package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"
)

var (
	ErrInvalidDenom      = errors.New("coins: invalid denom")
	ErrDuplicateDenom    = errors.New("coins: duplicate denom")
	ErrZeroAmount        = errors.New("coins: zero amount")
	ErrInsufficientFunds = errors.New("coins: insufficient funds")
)

// Coin is a single denomination and amount.
type Coin struct {
	Denom  string       `json:"denom"`
	Amount *uint256.Int `json:"amount"`
}

// NewCoin is a convenience constructor for small amounts.
func NewCoin(amount uint64, denom string) Coin {
	return Coin{Denom: denom, Amount: uint256.NewInt(amount)}
}

func (c Coin) String() string {
	if c.Amount == nil {
		return "0" + c.Denom
	}
	return c.Amount.Dec() + c.Denom
}

// Coins is a set of coins, sorted by denom with no duplicates and no zero amounts
// once normalized.
type Coins []Coin

// NewCoins builds a normalized Coins value, dropping zero amounts and merging duplicate denoms.
func NewCoins(coins ...Coin) Coins {
	var out Coins
	for _, c := range coins {
		out = out.Add(Coins{c})
	}
	return out
}

// Validate checks that the coins are normalized.
func (cs Coins) Validate() error {
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, c := range cs {
		if c.Denom == "" || strings.ContainsAny(c.Denom, " \t\n") {
			return fmt.Errorf("%w: %q", ErrInvalidDenom, c.Denom)
		}
		if seen.Contains(c.Denom) {
			return fmt.Errorf("%w: %s", ErrDuplicateDenom, c.Denom)
		}
		seen.Add(c.Denom)
		if c.Amount == nil || c.Amount.IsZero() {
			return fmt.Errorf("%w: %s", ErrZeroAmount, c.Denom)
		}
	}
	return nil
}

// IsZero reports whether the set holds no value at all.
func (cs Coins) IsZero() bool {
	for _, c := range cs {
		if c.Amount != nil && !c.Amount.IsZero() {
			return false
		}
	}
	return true
}

// AmountOf returns the amount held for denom, zero when absent.
func (cs Coins) AmountOf(denom string) *uint256.Int {
	for _, c := range cs {
		if c.Denom == denom && c.Amount != nil {
			return c.Amount.Clone()
		}
	}
	return new(uint256.Int)
}

// Add returns the sum of both sets. Neither input is mutated.
func (cs Coins) Add(other Coins) Coins {
	sums := make(map[string]*uint256.Int, len(cs)+len(other))
	for _, set := range []Coins{cs, other} {
		for _, c := range set {
			if c.Amount == nil || c.Amount.IsZero() {
				continue
			}
			if cur, ok := sums[c.Denom]; ok {
				sums[c.Denom] = new(uint256.Int).Add(cur, c.Amount)
			} else {
				sums[c.Denom] = c.Amount.Clone()
			}
		}
	}
	return fromMap(sums)
}

// Sub returns cs minus other, failing with ErrInsufficientFunds when any denom would go negative.
func (cs Coins) Sub(other Coins) (Coins, error) {
	rest := make(map[string]*uint256.Int, len(cs))
	for _, c := range cs {
		if c.Amount != nil {
			rest[c.Denom] = c.Amount.Clone()
		}
	}
	for _, c := range other {
		if c.Amount == nil || c.Amount.IsZero() {
			continue
		}
		cur, ok := rest[c.Denom]
		if !ok || cur.Lt(c.Amount) {
			return nil, fmt.Errorf("%w: need %s", ErrInsufficientFunds, c)
		}
		rest[c.Denom] = new(uint256.Int).Sub(cur, c.Amount)
	}
	return fromMap(rest), nil
}

// ParseCoins reads the format produced by Coins.String, e.g. "2atom,40token".
func ParseCoins(s string) (Coins, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var coins Coins
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		i := strings.IndexFunc(part, func(r rune) bool { return r < '0' || r > '9' })
		if i <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDenom, part)
		}
		amount, err := uint256.FromDecimal(part[:i])
		if err != nil {
			return nil, fmt.Errorf("coins: amount %q: %w", part[:i], err)
		}
		coins = append(coins, Coin{Denom: part[i:], Amount: amount})
	}
	if err := coins.Validate(); err != nil {
		return nil, err
	}
	return NewCoins(coins...), nil
}

func (cs Coins) String() string {
	if len(cs) == 0 {
		return ""
	}
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

func fromMap(m map[string]*uint256.Int) Coins {
	out := make(Coins, 0, len(m))
	for denom, amount := range m {
		if amount.IsZero() {
			continue
		}
		out = append(out, Coin{Denom: denom, Amount: amount})
	}
	if len(out) == 0 {
		return nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Denom < out[j].Denom })
	return out
}
