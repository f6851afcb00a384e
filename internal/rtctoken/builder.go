package rtctoken

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Role of the requesting client. Informational for now: all four privileges are
// granted regardless of role, matching the deployed verifiers. A stricter
// variant would gate the publish privileges behind RolePublisher.
type Role int

const (
	RolePublisher  Role = 1
	RoleSubscriber Role = 2
)

// maxChannelNameLen bounds channel names at build time. The wire format allows
// up to 65535 bytes, but no legitimate channel name approaches that; rejecting
// early gives the caller a validation error instead of an oversized token.
const maxChannelNameLen = 64

var (
	// ErrMissingCredentials means the builder was constructed without an app id
	// or certificate. Fatal: there is no degraded unsigned-token mode.
	ErrMissingCredentials = errors.New("rtctoken: missing app id or app certificate")

	ErrInvalidChannelName = errors.New("rtctoken: channel name must be 1-64 bytes")
	ErrInvalidTTL         = errors.New("rtctoken: ttl must be positive")
)

// Builder produces signed RTC access tokens for a single credential pair. The
// credentials are injected at construction rather than read from ambient
// configuration so the builder is testable with synthetic keys. Builders are
// stateless and safe for concurrent use.
type Builder struct {
	appID          string
	appCertificate string
	now            func() time.Time
	log            *zap.Logger
}

func NewBuilder(appID, appCertificate string, log *zap.Logger) (*Builder, error) {
	if appID == "" || appCertificate == "" {
		return nil, ErrMissingCredentials
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		appID:          appID,
		appCertificate: appCertificate,
		now:            time.Now,
		log:            log.Named("rtctoken"),
	}, nil
}

// AppID returns the app id tokens are built for. Verifiers need it out of
// band; it is folded into the signing key, not recoverable from a token.
func (b *Builder) AppID() string {
	return b.appID
}

// BuildTokenWithUID builds a token authorizing uid to use channelName with all
// four RTC privileges. tokenTTL bounds the whole envelope; privilegeTTL bounds
// the individual privileges and defaults to tokenTTL when <= 0. Both are in
// seconds.
func (b *Builder) BuildTokenWithUID(channelName string, uid uint32, role Role, tokenTTL, privilegeTTL int64) (string, error) {
	if len(channelName) == 0 || len(channelName) > maxChannelNameLen {
		return "", fmt.Errorf("%w: got %d bytes", ErrInvalidChannelName, len(channelName))
	}
	if tokenTTL <= 0 || tokenTTL > int64(^uint32(0)) {
		return "", fmt.Errorf("%w: token ttl %d", ErrInvalidTTL, tokenTTL)
	}
	if privilegeTTL <= 0 {
		privilegeTTL = tokenTTL
	}

	salt, err := newSalt()
	if err != nil {
		return "", err
	}
	issueTs := uint32(b.now().Unix())
	privilegeExpire := issueTs + uint32(privilegeTTL)

	service := NewServiceRTC(channelName, uid)
	service.AddPrivilege(PrivilegeJoinChannel, privilegeExpire)
	service.AddPrivilege(PrivilegePublishAudio, privilegeExpire)
	service.AddPrivilege(PrivilegePublishVideo, privilegeExpire)
	service.AddPrivilege(PrivilegePublishData, privilegeExpire)

	token := &AccessToken{
		IssueTs:  issueTs,
		Expire:   uint32(tokenTTL),
		Salt:     salt,
		Services: []*ServiceRTC{service},
	}

	encoded, err := token.Encode(b.appID, b.appCertificate)
	if err != nil {
		return "", err
	}

	b.log.Info("built rtc token",
		zap.String("channel", channelName),
		zap.Uint32("uid", uid),
		zap.Int("role", int(role)),
		zap.Uint32("expire_ts", issueTs+uint32(tokenTTL)),
	)
	return encoded, nil
}

// MaskSecret returns a loggable form of a credential: all but the last four
// characters replaced. Never log the raw certificate or a full token.
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	masked := make([]byte, len(s)-4)
	for i := range masked {
		masked[i] = '*'
	}
	return string(masked) + s[len(s)-4:]
}
