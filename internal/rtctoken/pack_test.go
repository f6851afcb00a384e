package rtctoken

import (
	"bytes"
	"strings"
	"testing"
)

func TestPackUint16_littleEndian(t *testing.T) {
	var buf bytes.Buffer
	packUint16(&buf, 0x1234)
	got := buf.Bytes()
	want := []byte{0x34, 0x12}
	if !bytes.Equal(got, want) {
		t.Errorf("packUint16(0x1234) = %v, want %v", got, want)
	}
}

func TestPackUint32_littleEndian(t *testing.T) {
	var buf bytes.Buffer
	packUint32(&buf, 0xdeadbeef)
	got := buf.Bytes()
	want := []byte{0xef, 0xbe, 0xad, 0xde}
	if !bytes.Equal(got, want) {
		t.Errorf("packUint32(0xdeadbeef) = %v, want %v", got, want)
	}
}

func TestPackString(t *testing.T) {
	var buf bytes.Buffer
	if err := packString(&buf, "abc"); err != nil {
		t.Fatalf("packString: %v", err)
	}
	want := []byte{0x03, 0x00, 'a', 'b', 'c'}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("packString(\"abc\") = %v, want %v", buf.Bytes(), want)
	}
}

func TestPackString_empty(t *testing.T) {
	var buf bytes.Buffer
	if err := packString(&buf, ""); err != nil {
		t.Fatalf("packString: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0x00, 0x00}) {
		t.Errorf("empty string should pack to a bare zero length prefix, got %v", buf.Bytes())
	}
}

func TestPackString_tooLong(t *testing.T) {
	var buf bytes.Buffer
	if err := packString(&buf, strings.Repeat("x", maxPackedStringLen+1)); err == nil {
		t.Error("expected error for string above the 2-byte length limit")
	}
}

func TestPackPrivileges_deterministicOrder(t *testing.T) {
	privileges := map[Privilege]uint32{
		PrivilegePublishData:  400,
		PrivilegeJoinChannel:  100,
		PrivilegePublishVideo: 300,
		PrivilegePublishAudio: 200,
	}

	var first bytes.Buffer
	packPrivileges(&first, privileges)
	for i := 0; i < 10; i++ {
		var again bytes.Buffer
		packPrivileges(&again, privileges)
		if !bytes.Equal(first.Bytes(), again.Bytes()) {
			t.Fatal("packPrivileges must produce identical bytes on every call")
		}
	}

	// key 1 must come first regardless of map iteration order
	got := first.Bytes()
	want := []byte{0x04, 0x00, 0x01, 0x00, 100, 0, 0, 0}
	if !bytes.Equal(got[:8], want) {
		t.Errorf("privileges should be packed in ascending key order, got prefix %v", got[:8])
	}
}

func TestServiceRTC_packRoundTrip(t *testing.T) {
	for _, name := range []string{"", "c", strings.Repeat("c", 64)} {
		svc := NewServiceRTC(name, 42)
		svc.AddPrivilege(PrivilegeJoinChannel, 1000)
		svc.AddPrivilege(PrivilegePublishAudio, 2000)

		var buf bytes.Buffer
		if err := svc.Pack(&buf); err != nil {
			t.Fatalf("Pack(%q): %v", name, err)
		}
		decoded, err := readServiceRTC(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("readServiceRTC(%q): %v", name, err)
		}
		if decoded.ChannelName != name {
			t.Errorf("channel name round trip: got %q, want %q", decoded.ChannelName, name)
		}
		if decoded.UID != 42 {
			t.Errorf("uid round trip: got %d, want 42", decoded.UID)
		}
		if ts, ok := decoded.PrivilegeExpiry(PrivilegeJoinChannel); !ok || ts != 1000 {
			t.Errorf("join privilege round trip: got (%d, %v)", ts, ok)
		}
		if ts, ok := decoded.PrivilegeExpiry(PrivilegePublishAudio); !ok || ts != 2000 {
			t.Errorf("audio privilege round trip: got (%d, %v)", ts, ok)
		}
	}
}

func TestAddPrivilege_lastWriteWins(t *testing.T) {
	svc := NewServiceRTC("ch", 1)
	svc.AddPrivilege(PrivilegeJoinChannel, 100)
	svc.AddPrivilege(PrivilegeJoinChannel, 200)
	if ts, _ := svc.PrivilegeExpiry(PrivilegeJoinChannel); ts != 200 {
		t.Errorf("AddPrivilege should upsert, got expiry %d", ts)
	}
}
