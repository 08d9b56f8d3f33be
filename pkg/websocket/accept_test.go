package websocket

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestAccept(t *testing.T) {
	stream := &fakeStream{}
	stream.in.WriteString(strings.Join([]string{
		"GET /ws HTTP/1.1",
		"Host: example.com",
		"Upgrade: websocket",
		"Connection: Upgrade",
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==",
		"Sec-WebSocket-Version: 13",
		"", "",
	}, "\r\n"))

	conn, err := Accept(stream, ServerConfig())
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if conn.role != RoleServer {
		t.Errorf("Accept() role = %v, want %v", conn.role, RoleServer)
	}

	resp, err := ParseHandshakeResponse(stream.out.Bytes())
	if err != nil {
		t.Fatalf("ParseHandshakeResponse() error = %v", err)
	}
	if resp.Status != http.StatusSwitchingProtocols {
		t.Errorf("response status = %d, want %d", resp.Status, http.StatusSwitchingProtocols)
	}
	if got, want := resp.Header.Get("Sec-WebSocket-Accept"), AcceptKey("dGhlIHNhbXBsZSBub25jZQ=="); got != want {
		t.Errorf("Sec-WebSocket-Accept = %q, want %q", got, want)
	}
}

func TestAcceptRejectsWrongVersion(t *testing.T) {
	stream := &fakeStream{}
	stream.in.WriteString(strings.Join([]string{
		"GET /ws HTTP/1.1",
		"Host: example.com",
		"Upgrade: websocket",
		"Connection: Upgrade",
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==",
		"Sec-WebSocket-Version: 8",
		"", "",
	}, "\r\n"))

	_, err := Accept(stream, ServerConfig())
	if !errors.Is(err, ErrWrongWSVersion) {
		t.Fatalf("Accept() error = %v, want %v", err, ErrWrongWSVersion)
	}

	resp, err := ParseHandshakeResponse(stream.out.Bytes())
	if err != nil {
		t.Fatalf("ParseHandshakeResponse() error = %v", err)
	}
	if resp.Status != http.StatusUpgradeRequired {
		t.Errorf("response status = %d, want %d", resp.Status, http.StatusUpgradeRequired)
	}
}

func TestAcceptRejectsMalformedRequest(t *testing.T) {
	stream := &fakeStream{}
	stream.in.WriteString("not an HTTP request\r\n\r\n")

	if _, err := Accept(stream, ServerConfig()); !errors.Is(err, ErrMalformedHTTP) {
		t.Fatalf("Accept() error = %v, want %v", err, ErrMalformedHTTP)
	}
}

func TestAcceptWithSubprotocol(t *testing.T) {
	stream := &fakeStream{}
	stream.in.WriteString(strings.Join([]string{
		"GET /ws HTTP/1.1",
		"Host: example.com",
		"Upgrade: websocket",
		"Connection: Upgrade",
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==",
		"Sec-WebSocket-Version: 13",
		"", "",
	}, "\r\n"))

	if _, err := Accept(stream, ServerConfig(), WithAcceptSubprotocol("chat")); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	resp, err := ParseHandshakeResponse(stream.out.Bytes())
	if err != nil {
		t.Fatalf("ParseHandshakeResponse() error = %v", err)
	}
	if got := resp.Header.Get("Sec-WebSocket-Protocol"); got != "chat" {
		t.Errorf("Sec-WebSocket-Protocol = %q, want %q", got, "chat")
	}
}
