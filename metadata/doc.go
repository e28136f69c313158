// Package metadata implements the header-value transform and deadline
// encoding carried alongside framed RPC messages.
//
// Header values are ASCII by convention. Binary or non-ASCII values are
// base64-encoded and their key is suffixed with "-bin", mirroring gRPC's
// own metadata convention. RestoreBinValue is the inverse transform applied
// on receipt.
//
// Deadlines are encoded as a compact string: a decimal amount (at most 8
// digits) followed by a single-letter time unit. See MicrosToInterval and
// IntervalToMicros.
package metadata
