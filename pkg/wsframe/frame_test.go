package wsframe

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		kind    byte
		msgType byte
		seq     uint16
		payload []byte
	}{
		{"empty payload", KindStateCmd, MsgData, 0, nil},
		{"state command", KindStateCmd, MsgData, 7, []byte{1}},
		{"pcm data", KindPCM, MsgData, 65535, make([]byte, 32000)},
		{"wav start", KindWAV, MsgStart, 3, []byte{0x80, 0x3e, 0, 0, 1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire := Encode(tt.kind, tt.msgType, tt.seq, tt.payload)
			if len(wire) != HeaderSize+len(tt.payload) {
				t.Fatalf("len(wire) = %d, want %d", len(wire), HeaderSize+len(tt.payload))
			}

			got, err := Decode(wire)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			want := Frame{Kind: tt.kind, MsgType: tt.msgType, Seq: tt.seq, Payload: tt.payload}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}

			rewire := Encode(got.Kind, got.MsgType, got.Seq, got.Payload)
			if diff := cmp.Diff(wire, rewire); diff != "" {
				t.Errorf("encode(decode(f)) != f (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"too short", []byte{1, 2, 0, 0}},
		{"empty", nil},
		{"payload length mismatch", Encode(KindPCM, MsgData, 0, []byte{1, 2, 3, 4})[:HeaderSize+2]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.buf)
			if err == nil {
				t.Fatalf("Decode() expected error, got nil")
			}
			if _, ok := err.(*ErrMalformedFrame); !ok {
				t.Errorf("Decode() error type = %T, want *ErrMalformedFrame", err)
			}
		})
	}
}

func TestEncodeStateCommand(t *testing.T) {
	wire := EncodeStateCommand(5, 2)
	got, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := Frame{Kind: KindStateCmd, MsgType: MsgData, Seq: 5, Payload: []byte{2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeWavStart(t *testing.T) {
	wire := EncodeWavStart(0, 16000, 1)
	got, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Kind != KindWAV || got.MsgType != MsgStart {
		t.Fatalf("got kind=%d msgType=%d", got.Kind, got.MsgType)
	}
	if len(got.Payload) != 6 {
		t.Fatalf("payload len = %d, want 6", len(got.Payload))
	}
}
