package rtctoken

import (
	"bytes"
	"compress/zlib"
	"crypto/hmac"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

var (
	ErrMalformedToken  = errors.New("rtctoken: malformed token")
	ErrVersionMismatch = errors.New("rtctoken: unsupported token version")
)

// maxContentLen caps the inflated content size. Legitimate tokens carry a few
// hundred bytes; anything larger is a decompression bomb, not a token.
const maxContentLen = 8 << 10

// ParseToken decodes the envelope and unpacks the signed content without
// checking the signature or expiry. Malformed input of any kind returns an
// error wrapping ErrMalformedToken; it never panics.
func ParseToken(token string) (*AccessToken, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrMalformedToken, err)
	}
	if len(raw) < versionLength+4 {
		return nil, fmt.Errorf("%w: envelope too short", ErrMalformedToken)
	}
	if string(raw[:versionLength]) != Version {
		return nil, fmt.Errorf("%w: got %q", ErrVersionMismatch, string(raw[:versionLength]))
	}
	raw = raw[versionLength:]

	sigLen := binary.BigEndian.Uint32(raw[:4])
	raw = raw[4:]
	if uint32(len(raw)) < sigLen {
		return nil, fmt.Errorf("%w: truncated signature", ErrMalformedToken)
	}
	signature := raw[:sigLen]
	compressed := raw[sigLen:]

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: inflate: %v", ErrMalformedToken, err)
	}
	content, err := io.ReadAll(io.LimitReader(zr, maxContentLen+1))
	if err != nil {
		return nil, fmt.Errorf("%w: inflate: %v", ErrMalformedToken, err)
	}
	_ = zr.Close()
	if len(content) > maxContentLen {
		return nil, fmt.Errorf("%w: content exceeds %d bytes", ErrMalformedToken, maxContentLen)
	}

	r := bytes.NewReader(content)
	t := &AccessToken{content: content, signature: signature}
	if t.IssueTs, err = readUint32(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if t.Expire, err = readUint32(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if t.Salt, err = readUint32(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	count, err := readUint16(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	for i := 0; i < int(count); i++ {
		svc, err := readServiceRTC(r)
		if err != nil {
			return nil, fmt.Errorf("%w: service %d: %v", ErrMalformedToken, i, err)
		}
		t.Services = append(t.Services, svc)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedToken, r.Len())
	}
	return t, nil
}

// Verifier checks tokens against a single credential pair. The app id is a
// required input: it is mixed into the derived signing key at build time but
// never embedded in the decodable content, so it cannot be recovered from the
// token itself.
type Verifier struct {
	appID          string
	appCertificate string
	now            func() time.Time
	log            *zap.Logger
}

func NewVerifier(appID, appCertificate string, log *zap.Logger) (*Verifier, error) {
	if appID == "" || appCertificate == "" {
		return nil, ErrMissingCredentials
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{
		appID:          appID,
		appCertificate: appCertificate,
		now:            time.Now,
		log:            log.Named("rtctoken.verify"),
	}, nil
}

// Verify reports whether token was signed by the holder of the verifier's
// certificate for its app id and has not expired. All failure modes collapse
// to false at this boundary; the distinct reasons are logged for operators.
func (v *Verifier) Verify(token string) bool {
	return v.verifyAt(token, v.now())
}

func (v *Verifier) verifyAt(token string, now time.Time) bool {
	t, err := ParseToken(token)
	if err != nil {
		v.log.Debug("token rejected", zap.Error(err))
		return false
	}

	expected := sign(v.appID, v.appCertificate, t.content)
	if !hmac.Equal(expected, t.signature) {
		v.log.Debug("token rejected", zap.String("reason", "signature mismatch"))
		return false
	}

	if uint32(now.Unix()) >= t.IssueTs+t.Expire {
		v.log.Debug("token rejected",
			zap.String("reason", "expired"),
			zap.Uint32("issue_ts", t.IssueTs),
			zap.Uint32("expire", t.Expire),
		)
		return false
	}
	return true
}
