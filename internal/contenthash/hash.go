// Package contenthash produces deterministic fingerprints for derived
// rows and corpus runs. Hashes are the reproducibility contract for
// downstream backtests: same inputs, byte-identical hash, forever.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"trade-signal-lab/internal/domain"
)

// RowHash computes the content hash of one snapshot row. Float fields
// use the shortest round-trip decimal form so the hash is independent
// of storage representation; bias columns are serialized in the fixed
// timeframe order.
func RowHash(row *domain.SnapshotRow) string {
	var b strings.Builder
	b.WriteString(row.Symbol)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(row.Ts, 10))
	for _, v := range []float64{row.Open, row.High, row.Low, row.Close, row.Volume} {
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	for _, tf := range domain.BiasTimeframes {
		b.WriteByte('|')
		b.WriteString(tf)
		b.WriteByte('=')
		b.WriteString(string(row.Bias[tf]))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Fingerprint computes the order-independent content hash of a row set
// under a logic version. Row hashes are sorted before hashing, so two
// computations of the same query must yield byte-identical
// fingerprints regardless of retrieval order.
func Fingerprint(rows []*domain.SnapshotRow, logicVersion string) string {
	hashes := make([]string, 0, len(rows))
	for _, row := range rows {
		h := row.RowHash
		if h == "" {
			h = RowHash(row)
		}
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	var b strings.Builder
	b.WriteString(logicVersion)
	for _, h := range hashes {
		b.WriteByte('|')
		b.WriteString(h)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
