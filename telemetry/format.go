package telemetry

import "strconv"

// Wire form of one record:
//
//	<timestamp_ns>/<X>/<Y>/<Z>/<R>
//
// Fields are ASCII decimal integers, or the literal NaN where the valid bit
// is clear. The timestamp is always present. Batches join records with a
// single newline and no trailing separator.

const nan = "NaN"

// maxRecordLen bounds one encoded record: a 20-digit timestamp, four signed
// 11-byte integers and four separators.
const maxRecordLen = 20 + 4*(1+11)

// AppendRecord appends the wire form of s to dst and returns the extended
// slice. It allocates nothing when dst has spare capacity, which keeps the
// publisher's hot path free of per-sample garbage.
func AppendRecord(dst []byte, s Sample) []byte {
	dst = strconv.AppendUint(dst, s.TimestampNS, 10)
	dst = appendField(dst, s.X, s.ValidMask&0x01 != 0)
	dst = appendField(dst, s.Y, s.ValidMask&0x02 != 0)
	dst = appendField(dst, s.Z, s.ValidMask&0x04 != 0)
	dst = appendField(dst, s.R, s.ValidMask&0x08 != 0)
	return dst
}

func appendField(dst []byte, pos int32, valid bool) []byte {
	dst = append(dst, '/')
	if !valid {
		return append(dst, nan...)
	}
	return strconv.AppendInt(dst, int64(pos), 10)
}

// AppendBatch appends the newline-joined encoding of batch to dst.
func AppendBatch(dst []byte, batch []Sample) []byte {
	for i, s := range batch {
		if i > 0 {
			dst = append(dst, '\n')
		}
		dst = AppendRecord(dst, s)
	}
	return dst
}

// BatchCap returns a capacity hint for encoding n records.
func BatchCap(n int) int { return n * (maxRecordLen + 1) }
