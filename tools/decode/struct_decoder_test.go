package decode

import "testing"

type uploadedPayload struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

func TestDecodeMapByJSONTag(t *testing.T) {
	// JSON numbers arrive as float64; weak typing must coerce them
	m := map[string]any{
		"file_id":  "f-1",
		"filename": "a.txt",
		"size":     float64(4096),
	}
	p, err := DecodeMap[uploadedPayload](m)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.FileID != "f-1" || p.Filename != "a.txt" || p.Size != 4096 {
		t.Fatalf("decoded = %+v", p)
	}
}

func TestDecodeMapIgnoresExtraKeys(t *testing.T) {
	m := map[string]any{"file_id": "f-2", "unexpected": true}
	p, err := DecodeMap[uploadedPayload](m)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.FileID != "f-2" {
		t.Fatalf("decoded = %+v", p)
	}
}

func TestDecodeMapNil(t *testing.T) {
	if _, err := DecodeMap[uploadedPayload](nil); err == nil {
		t.Fatalf("nil map accepted")
	}
}

func TestDecodeMapStrictTypes(t *testing.T) {
	m := map[string]any{"size": "not-a-number"}
	if _, err := DecodeMap[uploadedPayload](m, Options{WeaklyTypedInput: false}); err == nil {
		t.Fatalf("strict decode accepted string for int64")
	}
}
