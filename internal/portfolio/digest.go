package portfolio

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"time"

	"github.com/ndewijer/investment-ledger/internal/model"
)

// digestSize is the size in bytes of every digest and watermark.
const digestSize = sha256.Size

// AssetDigest hashes everything about an asset that feeds the aggregate: its id and
// class, its ledger rows and its aligned valuation points.
func AssetDigest(asset model.Asset, l model.Ledger, points []model.ValuationPoint) string {
	h := sha256.New()
	writeString(h, asset.ID)
	writeString(h, asset.Class)
	writeUint(h, uint64(len(l.Rows)))
	for _, t := range l.Rows {
		writeTime(h, t.Date)
		writeUint(h, uint64(t.Kind))
		writeFloat(h, t.Amount)
		writeFloat(h, t.Share)
	}
	writeUint(h, uint64(len(points)))
	for _, p := range points {
		writeTime(h, p.Date)
		writeFloat(h, p.UnitValue)
		writeFloat(h, p.NetValue)
		writeFloat(h, p.HoldingShare)
		writeFloat(h, p.HoldingPrice)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Watermark combines digests with XOR, so the result does not depend on their order.
// Malformed digests are hashed first so they still contribute.
func Watermark(digests ...string) string {
	var acc [digestSize]byte
	for _, d := range digests {
		b, err := hex.DecodeString(d)
		if err != nil || len(b) != digestSize {
			sum := sha256.Sum256([]byte(d))
			b = sum[:]
		}
		for i := range acc {
			acc[i] ^= b[i]
		}
	}
	return hex.EncodeToString(acc[:])
}

func windowDigest(w Window) string {
	if w.IsZero() {
		return ""
	}
	h := sha256.New()
	writeString(h, "window")
	writeTime(h, w.From)
	writeTime(h, w.To)
	return hex.EncodeToString(h.Sum(nil))
}

func writeString(h hash.Hash, s string) {
	writeUint(h, uint64(len(s)))
	h.Write([]byte(s))
}

func writeUint(h hash.Hash, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	h.Write(b[:])
}

func writeFloat(h hash.Hash, v float64) {
	if math.IsNaN(v) {
		v = math.NaN() // one canonical NaN
	}
	writeUint(h, math.Float64bits(v))
}

func writeTime(h hash.Hash, t time.Time) {
	if t.IsZero() {
		writeUint(h, 0)
		return
	}
	writeUint(h, uint64(t.UTC().Unix()))
}
