package directory

import (
	"fmt"

	"github.com/bwmarrin/go-objectsid"
	"github.com/google/uuid"
)

// Attribute value decoding for display. objectGUID and objectSid come off
// the wire as binary blobs; everything else is passed through as text.

// DecodeGUID converts a raw objectGUID value to its hyphenated string form.
// The directory stores GUIDs mixed-endian: the first three groups are
// little-endian, the last eight bytes big-endian.
func DecodeGUID(raw []byte) (string, error) {
	if len(raw) != 16 {
		return "", fmt.Errorf("objectGUID must be 16 bytes, got %d", len(raw))
	}

	reordered := make([]byte, 16)
	reordered[0], reordered[1], reordered[2], reordered[3] = raw[3], raw[2], raw[1], raw[0]
	reordered[4], reordered[5] = raw[5], raw[4]
	reordered[6], reordered[7] = raw[7], raw[6]
	copy(reordered[8:], raw[8:])

	id, err := uuid.FromBytes(reordered)
	if err != nil {
		return "", fmt.Errorf("decoding objectGUID: %w", err)
	}
	return id.String(), nil
}

// DecodeSID converts a raw objectSid value to its S-1-5-21-... string form.
// The header claims a sub-authority count; a value shorter than the header
// plus the claimed sub-authorities is rejected rather than handed to the
// decoder, which trusts the count.
func DecodeSID(raw []byte) (string, error) {
	if len(raw) < 8 {
		return "", fmt.Errorf("objectSid must be at least 8 bytes, got %d", len(raw))
	}
	subAuthorities := int(raw[1])
	if want := 8 + 4*subAuthorities; len(raw) < want {
		return "", fmt.Errorf("objectSid claims %d sub-authorities, needs %d bytes, got %d", subAuthorities, want, len(raw))
	}
	return objectsid.Decode(raw).String(), nil
}

// FormatValue renders an attribute value for display, decoding the known
// binary attributes and passing everything else through unchanged. An
// undecodable binary value renders as its raw string.
func FormatValue(attribute string, raw string) string {
	switch attribute {
	case "objectGUID":
		if decoded, err := DecodeGUID([]byte(raw)); err == nil {
			return decoded
		}
	case "objectSid":
		if decoded, err := DecodeSID([]byte(raw)); err == nil {
			return decoded
		}
	}
	return raw
}
