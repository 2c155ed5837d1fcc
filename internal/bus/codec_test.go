package bus

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/san-kum/posesim/internal/dynamo"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestKinematicStateCodec(t *testing.T) {
	tests := []struct {
		name string
		ks   dynamo.KinematicState
	}{
		{"zero", dynamo.KinematicState{}},
		{"forward", dynamo.KinematicState{Vx: 1}},
		{"all fields", dynamo.KinematicState{Vx: 1.5, Vy: -2, Vz: 0.25, RollRate: 0.1, PitchRate: -0.2, YawRate: 3.14159}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnmarshalKinematicState(MarshalKinematicState(tt.ks))
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if got != tt.ks {
				t.Errorf("got %v, want %v", got, tt.ks)
			}
		})
	}
}

func TestFrameCodecKeepsBits(t *testing.T) {
	p := dynamo.Pose{X: math.SmallestNonzeroFloat32, Y: math.MaxFloat32, Z: -0.1, Roll: 1, Pitch: -1, Yaw: float32(math.Pi)}
	got, err := UnmarshalFrame(MarshalFrame(p))
	if err != nil {
		t.Fatal(err)
	}
	if got != p {
		t.Errorf("got %v, want %v", got, p)
	}
}

func TestZeroFieldsAreOmitted(t *testing.T) {
	if b := MarshalKinematicState(dynamo.KinematicState{}); len(b) != 0 {
		t.Errorf("expected empty encoding, got %d bytes", len(b))
	}
	// tag (1 byte) + fixed32 (4 bytes)
	if b := MarshalFrame(dynamo.Pose{Yaw: 1}); len(b) != 5 {
		t.Errorf("expected 5 bytes, got %d", len(b))
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	e := Envelope{
		DataType:    KinematicStateID,
		Payload:     MarshalKinematicState(dynamo.KinematicState{Vx: 1, YawRate: 0.5}),
		Sent:        time.Unix(1700000000, 123456000),
		SampleTime:  time.Unix(1700000001, 999999000),
		SenderStamp: 7,
	}

	pkt, err := MarshalEnvelope(e)
	if err != nil {
		t.Fatal(err)
	}
	if pkt[0] != 0x0D || pkt[1] != 0xA4 {
		t.Fatalf("bad header % x", pkt[:2])
	}
	if size := int(pkt[2]) | int(pkt[3])<<8 | int(pkt[4])<<16; size != len(pkt)-5 {
		t.Errorf("header length %d, payload %d", size, len(pkt)-5)
	}

	got, err := UnmarshalEnvelope(pkt)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if diff := cmp.Diff(e, got); diff != "" {
		t.Errorf("envelope mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvelopeTruncatesSubMicrosecond(t *testing.T) {
	pkt, err := MarshalEnvelope(Envelope{DataType: FrameID, Sent: time.Unix(10, 1500)})
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalEnvelope(pkt)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Sent.Equal(time.Unix(10, 1000)) {
		t.Errorf("expected microsecond resolution, got %v", got.Sent)
	}
}

func TestUnmarshalEnvelopeErrors(t *testing.T) {
	good, err := MarshalEnvelope(Envelope{DataType: FrameID, Payload: MarshalFrame(dynamo.Pose{X: 1}), SenderStamp: 3})
	if err != nil {
		t.Fatal(err)
	}

	badMagic := append([]byte(nil), good...)
	badMagic[1] = 0xA5

	// declared length covers a varint that never terminates
	badBody := []byte{0x0D, 0xA4, 2, 0, 0, 0x08, 0xFF}

	tests := []struct {
		name string
		pkt  []byte
		want error
	}{
		{"empty", nil, ErrShortPacket},
		{"header only partial", []byte{0x0D, 0xA4, 1}, ErrShortPacket},
		{"bad magic", badMagic, ErrBadHeader},
		{"short body", good[:len(good)-1], ErrTruncated},
		{"bad varint", badBody, ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := UnmarshalEnvelope(tt.pkt); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	var body []byte
	body = protowire.AppendTag(body, 1, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(KinematicStateID))
	body = protowire.AppendTag(body, 42, protowire.BytesType)
	body = protowire.AppendBytes(body, []byte("ignored"))
	body = protowire.AppendTag(body, 6, protowire.VarintType)
	body = protowire.AppendVarint(body, 99)

	pkt := append([]byte{0x0D, 0xA4, byte(len(body)), 0, 0}, body...)
	pkt = append(pkt, 0xFF, 0xFF) // trailing garbage past the declared length

	e, err := UnmarshalEnvelope(pkt)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if e.DataType != KinematicStateID || e.SenderStamp != 99 {
		t.Errorf("unexpected envelope %+v", e)
	}

	var payload []byte
	payload = protowire.AppendTag(payload, 9, protowire.VarintType)
	payload = protowire.AppendVarint(payload, 5)
	payload = protowire.AppendTag(payload, 1, protowire.Fixed32Type)
	payload = protowire.AppendFixed32(payload, math.Float32bits(2.5))

	ks, err := UnmarshalKinematicState(payload)
	if err != nil {
		t.Fatal(err)
	}
	if ks != (dynamo.KinematicState{Vx: 2.5}) {
		t.Errorf("unexpected state %v", ks)
	}
}

func TestUnmarshalKinematicStateTruncated(t *testing.T) {
	b := MarshalKinematicState(dynamo.KinematicState{Vy: 1})
	if _, err := UnmarshalKinematicState(b[:len(b)-2]); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}
