package rtctoken

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// maxPackedStringLen is the largest byte length the 2-byte length prefix can express.
const maxPackedStringLen = 1<<16 - 1

// All interior fields of a token are little-endian; only the signature length
// prefix in the outer envelope uses network order (see token.go). Client-side
// decoders in other languages depend on these exact byte layouts.

func packUint16(w *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func packUint32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

// packString writes a 2-byte little-endian byte-length prefix followed by the
// raw UTF-8 bytes of s.
func packString(w *bytes.Buffer, s string) error {
	if len(s) > maxPackedStringLen {
		return fmt.Errorf("string length %d exceeds %d bytes", len(s), maxPackedStringLen)
	}
	packUint16(w, uint16(len(s)))
	w.WriteString(s)
	return nil
}

// packPrivileges writes a 2-byte entry count followed by (2-byte key, 4-byte
// expiry) pairs in ascending key order. The fixed order keeps the packed bytes,
// and therefore the signature, reproducible between builder and verifier.
func packPrivileges(w *bytes.Buffer, privileges map[Privilege]uint32) {
	keys := make([]Privilege, 0, len(privileges))
	for k := range privileges {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	packUint16(w, uint16(len(privileges)))
	for _, k := range keys {
		packUint16(w, uint16(k))
		packUint32(w, privileges[k])
	}
}

func readUint16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("read uint16: %w", err)
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("read uint32: %w", err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUint16(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("read string body: %w", err)
	}
	return string(b), nil
}

func readPrivileges(r *bytes.Reader) (map[Privilege]uint32, error) {
	n, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	privileges := make(map[Privilege]uint32, n)
	for i := 0; i < int(n); i++ {
		key, err := readUint16(r)
		if err != nil {
			return nil, err
		}
		expire, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		privileges[Privilege(key)] = expire
	}
	return privileges, nil
}
