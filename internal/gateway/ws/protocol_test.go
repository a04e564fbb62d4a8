package ws

import (
	"encoding/json"
	"testing"
)

func TestUnmarshalFrame_SendMessage(t *testing.T) {
	raw := `{"type":"req","id":"req-1","method":"send_message","params":{"channel":"sms","message":"buy milk"}}`

	got, err := UnmarshalFrame([]byte(raw))
	if err != nil {
		t.Fatalf("UnmarshalFrame: %v", err)
	}
	if got.Type != FrameTypeRequest {
		t.Fatalf("expected type %q, got %q", FrameTypeRequest, got.Type)
	}
	if got.Method != string(MethodSendMessage) {
		t.Fatalf("expected method %q, got %q", MethodSendMessage, got.Method)
	}

	var p SendMessageParams
	if err := json.Unmarshal(got.Params, &p); err != nil {
		t.Fatalf("unmarshal params: %v", err)
	}
	if p.Channel != "sms" || p.Message != "buy milk" {
		t.Fatalf("unexpected params %+v", p)
	}
}

func TestNewEventFrame(t *testing.T) {
	f, err := NewEventFrame("trace.entry", "trace_42", map[string]string{"content": "hi"})
	if err != nil {
		t.Fatalf("NewEventFrame: %v", err)
	}
	if f.Type != FrameTypeEvent {
		t.Fatalf("expected type %q, got %q", FrameTypeEvent, f.Type)
	}
	if f.Event != "trace.entry" {
		t.Fatalf("expected event %q, got %q", "trace.entry", f.Event)
	}
	if f.TraceID != "trace_42" {
		t.Fatalf("expected trace_id %q, got %q", "trace_42", f.TraceID)
	}

	var p map[string]string
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p["content"] != "hi" {
		t.Fatalf("expected payload.content %q, got %q", "hi", p["content"])
	}
}

func TestNewResponseFrame_OK(t *testing.T) {
	f, err := NewResponseFrame("req-5", true, map[string]string{"status": "done"}, "")
	if err != nil {
		t.Fatalf("NewResponseFrame: %v", err)
	}
	if f.Type != FrameTypeResponse {
		t.Fatalf("expected type %q, got %q", FrameTypeResponse, f.Type)
	}
	if f.ID != "req-5" {
		t.Fatalf("expected id %q, got %q", "req-5", f.ID)
	}
	if f.OK == nil || !*f.OK {
		t.Fatal("expected ok=true")
	}
	if f.Error != "" {
		t.Fatalf("expected no error, got %q", f.Error)
	}

	var p map[string]string
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p["status"] != "done" {
		t.Fatalf("expected payload.status %q, got %q", "done", p["status"])
	}
}

func TestNewResponseFrame_Error(t *testing.T) {
	f, err := NewResponseFrame("req-6", false, nil, "something went wrong")
	if err != nil {
		t.Fatalf("NewResponseFrame: %v", err)
	}
	if f.OK == nil || *f.OK {
		t.Fatal("expected ok=false")
	}
	if f.Error != "something went wrong" {
		t.Fatalf("expected error %q, got %q", "something went wrong", f.Error)
	}
	if f.Payload != nil {
		t.Fatalf("expected nil payload, got %s", string(f.Payload))
	}
}
