package sale

import (
	"encoding/hex"
	"strconv"
)

var (
	stateKeyBytes   = []byte("sale/state")
	totalSoldKey    = []byte("sale/total-sold")
	breakerKeyBytes = []byte("sale/breaker")
	dailyKeyBytes   = []byte("sale/daily")
	buyerPrefix     = []byte("sale/buyer/")
	denylistPrefix  = []byte("sale/denylist/")
	slotCountPrefix = []byte("sale/slot/")
)

func buyerKey(addr [20]byte) []byte {
	return appendHex(buyerPrefix, addr)
}

func denylistKey(addr [20]byte) []byte {
	return appendHex(denylistPrefix, addr)
}

func slotKey(slot uint64) []byte {
	suffix := strconv.FormatUint(slot, 10)
	key := make([]byte, 0, len(slotCountPrefix)+len(suffix))
	key = append(key, slotCountPrefix...)
	return append(key, suffix...)
}

func appendHex(prefix []byte, addr [20]byte) []byte {
	suffix := hex.EncodeToString(addr[:])
	key := make([]byte, 0, len(prefix)+len(suffix))
	key = append(key, prefix...)
	return append(key, suffix...)
}
