// Package codec provides the binary encodings recordkit stores records with.
//
// # Record Format
//
// A record is serialized as a header followed by one entry per field, in
// field list order:
//
//	[CRC32(4)][FieldCount(4)][Timestamp(8)] { [Kind(1)][Flags(1)][Len(4)][Payload] }
//
// Fields:
//   - CRC32: checksum over everything after the CRC field (little-endian)
//   - FieldCount: number of value entries that follow (little-endian)
//   - Timestamp: Unix timestamp in nanoseconds of the encoding (little-endian)
//   - Kind: value.Kind of the entry
//   - Flags: bit 0 is set for null values, which carry no payload
//   - Len: payload length in bytes (little-endian)
//
// Decoding checks the checksum, the field count and the kind of every entry
// against the field list, so a record written under a different schema is
// rejected instead of being misread.
//
// # Key Format
//
// EncodeKey turns an OrderKey into bytes whose lexicographic order is the
// key order:
//
//	key := order.KeyFor(record)
//	b, err := codec.EncodeKey(key)
//
// bytes.Compare(EncodeKey(a), EncodeKey(b)) has the sign of a.Compare(b) for
// keys whose segments hold the same kinds. Every segment encoding is prefix
// free, so further bytes (a record id, say) can be appended to make keys
// unique without disturbing the order.
//
// # Thread Safety
//
// RecordCodec instances are safe for concurrent use.
package codec
