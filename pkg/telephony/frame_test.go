package telephony

import (
	"encoding/json"
	"testing"
)

func TestDecodeStartFrame(t *testing.T) {
	t.Parallel()

	raw := `{"event":"start","start":{"streamSid":"MZ123","callSid":"CA456"}}`
	f, err := DecodeFrame([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Event != EventStart {
		t.Fatalf("unexpected event: %s", f.Event)
	}
	if f.Start == nil || f.Start.StreamSid != "MZ123" || f.Start.CallSid != "CA456" {
		t.Fatalf("unexpected start payload: %+v", f.Start)
	}
}

func TestDecodeMediaFrame(t *testing.T) {
	t.Parallel()

	raw := `{"event":"media","streamSid":"MZ123","media":{"payload":"AAAA"}}`
	f, err := DecodeFrame([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Event != EventMedia || f.Media == nil || f.Media.Payload != "AAAA" {
		t.Fatalf("unexpected frame: %+v", f)
	}
}

func TestDecodeStopFrame(t *testing.T) {
	t.Parallel()

	f, err := DecodeFrame([]byte(`{"event":"stop"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Event != EventStop || f.Start != nil || f.Media != nil {
		t.Fatalf("unexpected frame: %+v", f)
	}
}

func TestDecodeBadFrame(t *testing.T) {
	t.Parallel()

	if _, err := DecodeFrame([]byte("not json")); err == nil {
		t.Fatal("expected a decode error")
	}
}

func TestOutboundMediaShape(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(outboundMedia{
		Event:     EventMedia,
		StreamSid: "MZ123",
		Media:     FrameMedia{Payload: "BBBB"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"event":"media","streamSid":"MZ123","media":{"payload":"BBBB"}}`
	if string(raw) != want {
		t.Fatalf("unexpected wire shape: %s", raw)
	}
}

func TestOutboundClearShape(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(outboundClear{Event: "clear", StreamSid: "MZ123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"event":"clear","streamSid":"MZ123"}`
	if string(raw) != want {
		t.Fatalf("unexpected wire shape: %s", raw)
	}
}
