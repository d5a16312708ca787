package eventlog

import (
	"encoding/binary"

	"github.com/shopspring/decimal"
)

// Fixed-layout, POD payload encoders/decoders. No variable-length fields:
// fixed-width string slots are zero-padded; decimals are encoded as their
// underlying (coefficient, exponent) pair so no text parsing is needed on
// replay.

const symbolSlotLen = 16
const idSlotLen = 32

func putFixedString(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func getFixedString(src []byte) string {
	n := 0
	for n < len(src) && src[n] != 0 {
		n++
	}
	return string(src[:n])
}

func putDecimal(dst []byte, d decimal.Decimal) {
	binary.LittleEndian.PutUint64(dst[0:8], uint64(d.CoefficientInt64()))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(int32(d.Exponent())))
}

func getDecimal(src []byte) decimal.Decimal {
	coeff := int64(binary.LittleEndian.Uint64(src[0:8]))
	exp := int32(binary.LittleEndian.Uint32(src[8:12]))
	return decimal.New(coeff, exp)
}

const decimalLen = 12

// MarketTickPayload: symbol[16] + bid + bid_qty + ask + ask_qty.
func MarketTickPayload(symbol string, bid, bidQty, ask, askQty decimal.Decimal) []byte {
	buf := make([]byte, symbolSlotLen+4*decimalLen)
	putFixedString(buf[0:symbolSlotLen], symbol)
	off := symbolSlotLen
	putDecimal(buf[off:off+decimalLen], bid)
	off += decimalLen
	putDecimal(buf[off:off+decimalLen], bidQty)
	off += decimalLen
	putDecimal(buf[off:off+decimalLen], ask)
	off += decimalLen
	putDecimal(buf[off:off+decimalLen], askQty)
	return buf
}

func DecodeMarketTick(buf []byte) (symbol string, bid, bidQty, ask, askQty decimal.Decimal) {
	symbol = getFixedString(buf[0:symbolSlotLen])
	off := symbolSlotLen
	bid = getDecimal(buf[off : off+decimalLen])
	off += decimalLen
	bidQty = getDecimal(buf[off : off+decimalLen])
	off += decimalLen
	ask = getDecimal(buf[off : off+decimalLen])
	off += decimalLen
	askQty = getDecimal(buf[off : off+decimalLen])
	return
}

// AckPayload: client_id[32] + exchange_id[32].
func AckPayload(clientID, exchangeID string) []byte {
	buf := make([]byte, idSlotLen*2)
	putFixedString(buf[0:idSlotLen], clientID)
	putFixedString(buf[idSlotLen:idSlotLen*2], exchangeID)
	return buf
}

func DecodeAck(buf []byte) (clientID, exchangeID string) {
	return getFixedString(buf[0:idSlotLen]), getFixedString(buf[idSlotLen : idSlotLen*2])
}

// FillPayload: client_id[32] + qty + price.
func FillPayload(clientID string, qty, price decimal.Decimal) []byte {
	buf := make([]byte, idSlotLen+2*decimalLen)
	putFixedString(buf[0:idSlotLen], clientID)
	putDecimal(buf[idSlotLen:idSlotLen+decimalLen], qty)
	putDecimal(buf[idSlotLen+decimalLen:idSlotLen+2*decimalLen], price)
	return buf
}

func DecodeFill(buf []byte) (clientID string, qty, price decimal.Decimal) {
	clientID = getFixedString(buf[0:idSlotLen])
	qty = getDecimal(buf[idSlotLen : idSlotLen+decimalLen])
	price = getDecimal(buf[idSlotLen+decimalLen : idSlotLen+2*decimalLen])
	return
}

// CancelPayload / RejectPayload: client_id[32].
func CancelPayload(clientID string) []byte {
	buf := make([]byte, idSlotLen)
	putFixedString(buf, clientID)
	return buf
}

func RejectPayload(clientID string) []byte {
	return CancelPayload(clientID)
}

func DecodeClientIDOnly(buf []byte) string {
	return getFixedString(buf[0:idSlotLen])
}

// SubmitPayload: client_id[32] + symbol[16] + price + qty.
func SubmitPayload(clientID, symbol string, price, qty decimal.Decimal) []byte {
	buf := make([]byte, idSlotLen+symbolSlotLen+2*decimalLen)
	putFixedString(buf[0:idSlotLen], clientID)
	off := idSlotLen
	putFixedString(buf[off:off+symbolSlotLen], symbol)
	off += symbolSlotLen
	putDecimal(buf[off:off+decimalLen], price)
	off += decimalLen
	putDecimal(buf[off:off+decimalLen], qty)
	return buf
}

func DecodeSubmit(buf []byte) (clientID, symbol string, price, qty decimal.Decimal) {
	clientID = getFixedString(buf[0:idSlotLen])
	off := idSlotLen
	symbol = getFixedString(buf[off : off+symbolSlotLen])
	off += symbolSlotLen
	price = getDecimal(buf[off : off+decimalLen])
	off += decimalLen
	qty = getDecimal(buf[off : off+decimalLen])
	return
}
