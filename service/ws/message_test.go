package ws

import (
	"encoding/json"
	"testing"

	errs "KingShare/tools/errs"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	out := &Message{Type: TypeFileUploaded, Payload: FileUploadedPayload{
		FileID:   "f-1",
		Filename: "report.pdf",
		Size:     2048,
	}}
	data, err := out.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	in, err := ParseFrame(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if in.Type != TypeFileUploaded {
		t.Fatalf("type = %q, want %q", in.Type, TypeFileUploaded)
	}
	p := in.PayloadMap()
	if p["file_id"] != "f-1" || p["filename"] != "report.pdf" {
		t.Fatalf("payload fields lost: %v", p)
	}
	if size, ok := p["size"].(float64); !ok || int64(size) != 2048 {
		t.Fatalf("size = %v", p["size"])
	}
}

func TestPingCarriesNoPayload(t *testing.T) {
	data, err := BuildPing().Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(data) != `{"type":"ping"}` {
		t.Fatalf("ping frame = %s", data)
	}
	msg, err := ParseFrame(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Type != TypePing || len(msg.PayloadMap()) != 0 {
		t.Fatalf("parsed ping = %+v", msg)
	}
}

func TestParseFrameRejectsBadJSON(t *testing.T) {
	for _, raw := range []string{"", "{", `"ping"`, `[1,2]`} {
		if _, err := ParseFrame([]byte(raw)); !errs.ErrFrameInvalid.Is(err) {
			t.Fatalf("raw %q: err = %v, want frame-invalid", raw, err)
		}
	}
}

func TestParseFrameRejectsUnknownType(t *testing.T) {
	_, err := ParseFrame([]byte(`{"type":"teleport","payload":{}}`))
	if !errs.ErrFrameInvalid.Is(err) {
		t.Fatalf("err = %v, want frame-invalid", err)
	}
	_, err = ParseFrame([]byte(`{"payload":{"x":1}}`))
	if !errs.ErrFrameInvalid.Is(err) {
		t.Fatalf("missing type: err = %v, want frame-invalid", err)
	}
}

func TestPresenceFrameWireShape(t *testing.T) {
	data, err := BuildUserOnline("u-9", "ada").Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var frame struct {
		Type    string          `json:"type"`
		Payload PresencePayload `json:"payload"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.Type != "user_online" || frame.Payload.UserID != "u-9" || frame.Payload.Username != "ada" {
		t.Fatalf("frame = %+v", frame)
	}
}
