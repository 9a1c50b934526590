package domain

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// OrderKey is the injective identity of an order: BuyAmount in the high 96
// bits, SellAmount in the middle 96, OwnerID in the low 64. Two orders can
// only collide on the key if all three fields are equal. The key is used for
// queue links and claim lookups; price comparison always goes through the
// explicit comparator, never through the key.
type OrderKey [32]byte

const amountBits = 96

// EncodeOrder packs an order into its identity key. Amounts must be
// non-negative integers below 2^96.
func EncodeOrder(o Order) (OrderKey, error) {
	var k OrderKey
	if err := putAmount(k[0:12], o.BuyAmount); err != nil {
		return OrderKey{}, err
	}
	if err := putAmount(k[12:24], o.SellAmount); err != nil {
		return OrderKey{}, err
	}
	binary.BigEndian.PutUint64(k[24:32], o.OwnerID)
	return k, nil
}

// DecodeOrder is the inverse of EncodeOrder. Every key produced by
// EncodeOrder decodes back to the original order.
func DecodeOrder(k OrderKey) Order {
	return Order{
		OwnerID:    binary.BigEndian.Uint64(k[24:32]),
		SellAmount: decimal.NewFromBigInt(new(big.Int).SetBytes(k[12:24]), 0),
		BuyAmount:  decimal.NewFromBigInt(new(big.Int).SetBytes(k[0:12]), 0),
	}
}

func putAmount(dst []byte, d decimal.Decimal) error {
	if d.IsNegative() || !d.IsInteger() {
		return ErrInvalidAmount
	}
	b := d.BigInt()
	if b.BitLen() > amountBits {
		return ErrInvalidAmount
	}
	b.FillBytes(dst)
	return nil
}

// KeyRanksAbove reports whether order a outbids order b: a's unit price is
// strictly higher under cross multiplication. Equal prices fall back to the
// numeric order of the packed keys (larger buyAmount, then larger sellAmount,
// then larger ownerId), keeping the ranking total and deterministic.
func KeyRanksAbove(a, b OrderKey) bool {
	oa, ob := DecodeOrder(a), DecodeOrder(b)
	if oa.UnitPriceAbove(ob) {
		return true
	}
	if ob.UnitPriceAbove(oa) {
		return false
	}
	return bytes.Compare(a[:], b[:]) > 0
}

func (k OrderKey) IsZero() bool {
	return k == OrderKey{}
}

func (k OrderKey) String() string {
	return hex.EncodeToString(k[:])
}

func (k OrderKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *OrderKey) UnmarshalText(text []byte) error {
	parsed, err := ParseOrderKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseOrderKey reads the canonical 64-character hex form of a key.
func ParseOrderKey(s string) (OrderKey, error) {
	var k OrderKey
	if len(s) != hex.EncodedLen(len(k)) {
		return OrderKey{}, fmt.Errorf("order key must be %d hex characters", hex.EncodedLen(len(k)))
	}
	if _, err := hex.Decode(k[:], []byte(s)); err != nil {
		return OrderKey{}, fmt.Errorf("decode order key: %w", err)
	}
	return k, nil
}
