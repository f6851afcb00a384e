package rtctoken

import (
	"bytes"
	"compress/zlib"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// Version is the 3-character envelope version prefix. It must match the value
// used by every verifier that consumes these tokens.
const Version = "007"

const versionLength = 3

// AccessToken is the signed envelope authorizing access to one or more RTC
// services. Envelopes are built fresh per request and never persisted; they are
// stateless bearer credentials that die when Expire seconds elapse after
// IssueTs.
type AccessToken struct {
	IssueTs  uint32 // unix timestamp at build time
	Expire   uint32 // seconds from IssueTs until the whole token is invalid
	Salt     uint32 // random per-token value, decorrelates signatures
	Services []*ServiceRTC

	// populated by ParseToken for verification
	content   []byte
	signature []byte
}

// newSalt draws the per-token salt from the CSPRNG. The salt exists to keep
// identical token contents from producing identical signatures, not for
// secrecy.
func newSalt() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("generate salt: %w", err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// packContent serializes issue timestamp, expiry, salt, service count and the
// packed services. This is both the signed message and the compressed payload.
func (t *AccessToken) packContent() ([]byte, error) {
	var buf bytes.Buffer
	packUint32(&buf, t.IssueTs)
	packUint32(&buf, t.Expire)
	packUint32(&buf, t.Salt)
	packUint16(&buf, uint16(len(t.Services)))
	for _, svc := range t.Services {
		if err := svc.Pack(&buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// sign computes the double HMAC-SHA256 signature over content. The first HMAC
// derives a per-token key from the app certificate, app id and the header
// fields; the second signs the content with that key. The derivation binds the
// signature to the exact (appID, issueTs, expire, salt, services) tuple so a
// signature can never be reused across tokens. Do not collapse this to a
// single HMAC: it would change the wire format.
func sign(appID, appCertificate string, content []byte) []byte {
	signing := hmac.New(sha256.New, []byte(appCertificate))
	signing.Write([]byte(appID))
	signing.Write(content)
	m := signing.Sum(nil)

	mac := hmac.New(sha256.New, m)
	mac.Write(content)
	return mac.Sum(nil)
}

// Encode signs, compresses and base64-encodes the token.
//
// Envelope layout: version (3 bytes) + big-endian uint32 signature length +
// signature + zlib-compressed content. The big-endian length prefix is the one
// network-order field in an otherwise little-endian format; existing decoders
// depend on the asymmetry.
func (t *AccessToken) Encode(appID, appCertificate string) (string, error) {
	content, err := t.packContent()
	if err != nil {
		return "", err
	}
	signature := sign(appID, appCertificate, content)

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(content); err != nil {
		return "", fmt.Errorf("compress content: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress content: %w", err)
	}

	var envelope bytes.Buffer
	envelope.WriteString(Version)
	var sigLen [4]byte
	binary.BigEndian.PutUint32(sigLen[:], uint32(len(signature)))
	envelope.Write(sigLen[:])
	envelope.Write(signature)
	envelope.Write(compressed.Bytes())

	return base64.StdEncoding.EncodeToString(envelope.Bytes()), nil
}
