package torrent

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestMessageSerializeKeepAlive(t *testing.T) {
	var msg *Message
	got := msg.Serialize()
	want := []byte{0, 0, 0, 0}

	if !bytes.Equal(got, want) {
		t.Errorf("keep-alive serialize = %v, want %v", got, want)
	}
}

func TestReadMessageKeepAlive(t *testing.T) {
	msg, err := ReadMessage(bytes.NewReader([]byte{0, 0, 0, 0}))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msg != nil {
		t.Errorf("expected nil message for keep-alive, got %+v", msg)
	}
}

func TestMessageSerializeReadRoundTrip(t *testing.T) {
	original := &Message{ID: PieceMsg, Payload: []byte{1, 2, 3, 4}}

	decoded, err := ReadMessage(bytes.NewReader(original.Serialize()))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	if decoded.ID != original.ID {
		t.Errorf("ID = %d, want %d", decoded.ID, original.ID)
	}
	if !bytes.Equal(decoded.Payload, original.Payload) {
		t.Errorf("Payload = %v, want %v", decoded.Payload, original.Payload)
	}
}

func TestHaveRoundTrip(t *testing.T) {
	msg := EncodeHave(42)

	index, err := DecodeHave(msg)
	if err != nil {
		t.Fatalf("DecodeHave: %v", err)
	}
	if index != 42 {
		t.Errorf("index = %d, want 42", index)
	}
}

func TestDecodeHaveRejectsWrongID(t *testing.T) {
	if _, err := DecodeHave(&Message{ID: Choke}); err == nil {
		t.Error("expected DecodeHave to reject a non-Have message")
	}
}

func TestRequestAndCancelRoundTrip(t *testing.T) {
	for _, build := range []func(int, int, int) *Message{EncodeRequest, EncodeCancel} {
		msg := build(3, 16384, 16384)

		index, begin, length, err := DecodeRequest(msg)
		if err != nil {
			t.Fatalf("DecodeRequest: %v", err)
		}
		if index != 3 || begin != 16384 || length != 16384 {
			t.Errorf("got (%d, %d, %d), want (3, 16384, 16384)", index, begin, length)
		}
	}
}

func TestPieceRoundTrip(t *testing.T) {
	data := []byte("some block bytes")
	msg := EncodePiece(5, 32768, data)

	index, begin, got, err := DecodePiece(msg)
	if err != nil {
		t.Fatalf("DecodePiece: %v", err)
	}
	if index != 5 || begin != 32768 {
		t.Errorf("got (index=%d, begin=%d), want (5, 32768)", index, begin)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("data = %q, want %q", got, data)
	}
}

func TestBitfieldMessageRoundTrip(t *testing.T) {
	bf := NewBitfield(20)
	bf.SetPiece(3)
	bf.SetPiece(19)

	msg := EncodeBitfield(bf)

	decoded, err := DecodeBitfield(msg, 20)
	if err != nil {
		t.Fatalf("DecodeBitfield: %v", err)
	}

	if !decoded.HasPiece(3) || !decoded.HasPiece(19) {
		t.Error("decoded bitfield lost a set bit")
	}
	if decoded.HasPiece(4) {
		t.Error("decoded bitfield gained a bit that was never set")
	}
}

func TestDecodeBitfieldRejectsWrongLength(t *testing.T) {
	msg := &Message{ID: BitfieldMsg, Payload: make([]byte, 2)}

	if _, err := DecodeBitfield(msg, 20); err == nil {
		t.Error("expected DecodeBitfield to reject a mismatched payload length")
	}
}

func TestReadMessageRejectsOversizedLengthPrefix(t *testing.T) {
	lengthBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthBuf, maxMessageLength+1)

	_, err := ReadMessage(bytes.NewReader(lengthBuf))
	if err == nil {
		t.Fatal("expected ReadMessage to reject a length prefix over maxMessageLength")
	}

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected a *DecodeError, got %T: %v", err, err)
	}
	if decodeErr.Kind != DecodeErrorFraming {
		t.Errorf("Kind = %v, want DecodeErrorFraming", decodeErr.Kind)
	}
}
