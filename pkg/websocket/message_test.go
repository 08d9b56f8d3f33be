package websocket

import "testing"

func TestMessageConstructors(t *testing.T) {
	if m := TextMessage("hi"); m.Type != MessageText || m.Text != "hi" {
		t.Errorf("TextMessage() = %+v", m)
	}
	if m := BinaryMessage([]byte{1, 2}); m.Type != MessageBinary || len(m.Data) != 2 {
		t.Errorf("BinaryMessage() = %+v", m)
	}
	if m := PingMessage([]byte("ping")); m.Type != MessagePing {
		t.Errorf("PingMessage() = %+v", m)
	}
	if m := PongMessage([]byte("pong")); m.Type != MessagePong {
		t.Errorf("PongMessage() = %+v", m)
	}

	m := CloseMessage(StatusGoingAway, "bye")
	if m.Type != MessageClose {
		t.Fatalf("CloseMessage() type = %v, want %v", m.Type, MessageClose)
	}
	if m.Close == nil || m.Close.Code != StatusGoingAway || m.Close.Reason != "bye" {
		t.Errorf("CloseMessage() close = %+v", m.Close)
	}
}

func TestMessageTypeString(t *testing.T) {
	tests := map[MessageType]string{
		MessageText:        "text",
		MessageBinary:      "binary",
		MessagePing:        "ping",
		MessagePong:        "pong",
		MessageClose:       "close",
		MessageType(99):    "unknown",
	}
	for typ, want := range tests {
		if got := typ.String(); got != want {
			t.Errorf("MessageType(%d).String() = %q, want %q", typ, got, want)
		}
	}
}
