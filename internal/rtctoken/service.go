package rtctoken

import "bytes"

// Privilege identifies a permitted action inside an RTC channel. Each privilege
// carries its own expiration timestamp in the token.
type Privilege uint16

const (
	PrivilegeJoinChannel  Privilege = 1
	PrivilegePublishAudio Privilege = 2
	PrivilegePublishVideo Privilege = 3
	PrivilegePublishData  Privilege = 4
)

// ServiceRTC describes the RTC channel and identity a set of privileges applies
// to. A descriptor is populated once by the builder and packed; it is never
// mutated after signing.
type ServiceRTC struct {
	ChannelName string
	UID         uint32

	privileges map[Privilege]uint32
}

func NewServiceRTC(channelName string, uid uint32) *ServiceRTC {
	return &ServiceRTC{
		ChannelName: channelName,
		UID:         uid,
		privileges:  make(map[Privilege]uint32),
	}
}

// AddPrivilege grants a privilege until the given unix timestamp. Last write
// wins for a given kind.
func (s *ServiceRTC) AddPrivilege(p Privilege, expireTs uint32) {
	s.privileges[p] = expireTs
}

// PrivilegeExpiry returns the expiration timestamp for a granted privilege.
func (s *ServiceRTC) PrivilegeExpiry(p Privilege) (uint32, bool) {
	ts, ok := s.privileges[p]
	return ts, ok
}

// Pack appends packString(channel) + packUint32(uid) + packPrivileges to w.
func (s *ServiceRTC) Pack(w *bytes.Buffer) error {
	if err := packString(w, s.ChannelName); err != nil {
		return err
	}
	packUint32(w, s.UID)
	packPrivileges(w, s.privileges)
	return nil
}

func readServiceRTC(r *bytes.Reader) (*ServiceRTC, error) {
	channel, err := readString(r)
	if err != nil {
		return nil, err
	}
	uid, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	privileges, err := readPrivileges(r)
	if err != nil {
		return nil, err
	}
	return &ServiceRTC{ChannelName: channel, UID: uid, privileges: privileges}, nil
}
