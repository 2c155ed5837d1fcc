package bus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/san-kum/posesim/internal/dynamo"
	"google.golang.org/protobuf/encoding/protowire"
)

// Message identifiers carried in Envelope.DataType.
const (
	FrameID          int32 = 1001
	KinematicStateID int32 = 1002
)

// Packet framing: two magic bytes then a 24-bit little-endian payload length.
const (
	headerLen      = 5
	magic0    byte = 0x0D
	magic1    byte = 0xA4
	maxPayload     = 1<<24 - 1
)

var (
	ErrShortPacket = errors.New("bus: packet shorter than header")
	ErrBadHeader   = errors.New("bus: bad packet header")
	ErrTruncated   = errors.New("bus: truncated message")
	ErrTooLarge    = errors.New("bus: message too large")
)

// Envelope wraps one serialized message with its routing metadata.
type Envelope struct {
	DataType    int32
	Payload     []byte
	Sent        time.Time
	Received    time.Time
	SampleTime  time.Time
	SenderStamp uint32
}

// six float32 fields numbered 1..6
func appendFloats(b []byte, vals ...float32) []byte {
	for i, v := range vals {
		if v == 0 {
			continue
		}
		b = protowire.AppendTag(b, protowire.Number(i+1), protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(v))
	}
	return b
}

func consumeFloats(b []byte, out []*float32) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrTruncated, protowire.ParseError(n))
		}
		b = b[n:]

		if typ == protowire.Fixed32Type && num >= 1 && int(num) <= len(out) {
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return fmt.Errorf("%w: %w", ErrTruncated, protowire.ParseError(n))
			}
			*out[num-1] = math.Float32frombits(v)
			b = b[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrTruncated, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

func MarshalKinematicState(s dynamo.KinematicState) []byte {
	return appendFloats(nil, s.Vx, s.Vy, s.Vz, s.RollRate, s.PitchRate, s.YawRate)
}

func UnmarshalKinematicState(b []byte) (dynamo.KinematicState, error) {
	var s dynamo.KinematicState
	err := consumeFloats(b, []*float32{&s.Vx, &s.Vy, &s.Vz, &s.RollRate, &s.PitchRate, &s.YawRate})
	return s, err
}

func MarshalFrame(p dynamo.Pose) []byte {
	return appendFloats(nil, p.X, p.Y, p.Z, p.Roll, p.Pitch, p.Yaw)
}

func UnmarshalFrame(b []byte) (dynamo.Pose, error) {
	var p dynamo.Pose
	err := consumeFloats(b, []*float32{&p.X, &p.Y, &p.Z, &p.Roll, &p.Pitch, &p.Yaw})
	return p, err
}

func appendTimestamp(b []byte, num protowire.Number, t time.Time) []byte {
	if t.IsZero() {
		return b
	}
	var ts []byte
	ts = protowire.AppendTag(ts, 1, protowire.VarintType)
	ts = protowire.AppendVarint(ts, uint64(t.Unix()))
	ts = protowire.AppendTag(ts, 2, protowire.VarintType)
	ts = protowire.AppendVarint(ts, uint64(t.Nanosecond()/1000))

	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, ts)
}

func consumeTimestamp(b []byte) (time.Time, error) {
	var sec, usec uint64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return time.Time{}, fmt.Errorf("%w: %w", ErrTruncated, protowire.ParseError(n))
		}
		b = b[n:]
		if typ == protowire.VarintType && (num == 1 || num == 2) {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return time.Time{}, fmt.Errorf("%w: %w", ErrTruncated, protowire.ParseError(n))
			}
			if num == 1 {
				sec = v
			} else {
				usec = v
			}
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return time.Time{}, fmt.Errorf("%w: %w", ErrTruncated, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return time.Unix(int64(sec), int64(usec)*1000), nil
}

// MarshalEnvelope encodes e as a framed packet ready for the wire.
func MarshalEnvelope(e Envelope) ([]byte, error) {
	body := make([]byte, 0, len(e.Payload)+48)
	body = protowire.AppendTag(body, 1, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(uint32(e.DataType)))
	body = protowire.AppendTag(body, 2, protowire.BytesType)
	body = protowire.AppendBytes(body, e.Payload)
	body = appendTimestamp(body, 3, e.Sent)
	body = appendTimestamp(body, 4, e.Received)
	body = appendTimestamp(body, 5, e.SampleTime)
	body = protowire.AppendTag(body, 6, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(e.SenderStamp))

	if len(body) > maxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(body))
	}

	pkt := make([]byte, headerLen, headerLen+len(body))
	pkt[0], pkt[1] = magic0, magic1
	pkt[2] = byte(len(body))
	pkt[3] = byte(len(body) >> 8)
	pkt[4] = byte(len(body) >> 16)
	return append(pkt, body...), nil
}

// UnmarshalEnvelope decodes one framed packet. Trailing bytes past the
// declared length are ignored.
func UnmarshalEnvelope(pkt []byte) (Envelope, error) {
	var e Envelope
	if len(pkt) < headerLen {
		return e, ErrShortPacket
	}
	if pkt[0] != magic0 || pkt[1] != magic1 {
		return e, ErrBadHeader
	}
	size := int(binary.LittleEndian.Uint32([]byte{pkt[2], pkt[3], pkt[4], 0}))
	if len(pkt)-headerLen < size {
		return e, fmt.Errorf("%w: want %d bytes, have %d", ErrTruncated, size, len(pkt)-headerLen)
	}
	b := pkt[headerLen : headerLen+size]

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, fmt.Errorf("%w: %w", ErrTruncated, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, fmt.Errorf("%w: %w", ErrTruncated, protowire.ParseError(n))
			}
			e.DataType = int32(uint32(v))
			b = b[n:]
		case num == 6 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, fmt.Errorf("%w: %w", ErrTruncated, protowire.ParseError(n))
			}
			e.SenderStamp = uint32(v)
			b = b[n:]
		case num >= 2 && num <= 5 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return e, fmt.Errorf("%w: %w", ErrTruncated, protowire.ParseError(n))
			}
			b = b[n:]
			if num == 2 {
				e.Payload = append([]byte(nil), v...)
				continue
			}
			ts, err := consumeTimestamp(v)
			if err != nil {
				return e, err
			}
			switch num {
			case 3:
				e.Sent = ts
			case 4:
				e.Received = ts
			case 5:
				e.SampleTime = ts
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return e, fmt.Errorf("%w: %w", ErrTruncated, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return e, nil
}
