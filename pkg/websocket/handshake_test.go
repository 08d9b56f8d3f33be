package websocket

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"testing"
)

// The canonical example from
// https://datatracker.ietf.org/doc/html/rfc6455#section-1.3.
func TestAcceptKeyRFCExample(t *testing.T) {
	const key = "dGhlIHNhbXBsZSBub25jZQ=="
	const want = "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="

	if got := AcceptKey(key); got != want {
		t.Errorf("AcceptKey(%q) = %q, want %q", key, got, want)
	}
}

func validRequestBytes() []byte {
	return []byte(strings.Join([]string{
		"GET /chat HTTP/1.1",
		"Host: server.example.com",
		"Upgrade: websocket",
		"Connection: Upgrade",
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==",
		"Sec-WebSocket-Version: 13",
		"", "",
	}, "\r\n"))
}

func TestParseHandshakeRequestValid(t *testing.T) {
	req, err := ParseHandshakeRequest(validRequestBytes())
	if err != nil {
		t.Fatalf("ParseHandshakeRequest() error = %v", err)
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if req.Host != "server.example.com" {
		t.Errorf("Host = %q", req.Host)
	}
}

func TestHandshakeRequestValidate(t *testing.T) {
	base := func() *HandshakeRequest {
		req, _ := ParseHandshakeRequest(validRequestBytes())
		return req
	}

	tests := []struct {
		name    string
		mutate  func(*HandshakeRequest)
		wantErr error
	}{
		{
			name:   "valid",
			mutate: func(*HandshakeRequest) {},
		},
		{
			name:    "wrong_method",
			mutate:  func(r *HandshakeRequest) { r.Method = http.MethodPost },
			wantErr: ErrBadMethod,
		},
		{
			name:    "old_http_version",
			mutate:  func(r *HandshakeRequest) { r.Major, r.Minor = 1, 0 },
			wantErr: ErrBadHTTPVersion,
		},
		{
			name:    "missing_host",
			mutate:  func(r *HandshakeRequest) { r.Host = "" },
			wantErr: ErrMissingHeader,
		},
		{
			name:    "missing_upgrade",
			mutate:  func(r *HandshakeRequest) { r.Header.Del("Upgrade") },
			wantErr: ErrMissingHeader,
		},
		{
			name:    "missing_connection",
			mutate:  func(r *HandshakeRequest) { r.Header.Del("Connection") },
			wantErr: ErrMissingHeader,
		},
		{
			name:    "wrong_version",
			mutate:  func(r *HandshakeRequest) { r.Header.Set("Sec-WebSocket-Version", "8") },
			wantErr: ErrWrongWSVersion,
		},
		{
			name:    "missing_key",
			mutate:  func(r *HandshakeRequest) { r.Header.Del("Sec-WebSocket-Key") },
			wantErr: ErrMissingHeader,
		},
		{
			name:    "bad_key_not_base64",
			mutate:  func(r *HandshakeRequest) { r.Header.Set("Sec-WebSocket-Key", "not base64!!") },
			wantErr: ErrBadKey,
		},
		{
			name:    "bad_key_wrong_length",
			mutate:  func(r *HandshakeRequest) { r.Header.Set("Sec-WebSocket-Key", "c2hvcnQ=") },
			wantErr: ErrBadKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base()
			tt.mutate(req)
			err := req.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHandshakeRoundTrip(t *testing.T) {
	req, nonce, err := NewHandshakeRequest(bytes.NewReader(bytes.Repeat([]byte{0x2a}, 16)), "example.com", "/ws")
	if err != nil {
		t.Fatalf("NewHandshakeRequest() error = %v", err)
	}

	var reqBuf bytes.Buffer
	if _, err := req.WriteTo(&reqBuf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}

	parsedReq, err := ParseHandshakeRequest(reqBuf.Bytes())
	if err != nil {
		t.Fatalf("ParseHandshakeRequest() error = %v", err)
	}
	if err := parsedReq.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	resp := NewHandshakeResponse(parsedReq)
	var respBuf bytes.Buffer
	if _, err := resp.WriteTo(&respBuf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}

	parsedResp, err := ParseHandshakeResponse(respBuf.Bytes())
	if err != nil {
		t.Fatalf("ParseHandshakeResponse() error = %v", err)
	}

	if err := ValidateHandshakeResponse(parsedResp, nonce); err != nil {
		t.Fatalf("ValidateHandshakeResponse() error = %v", err)
	}
}

func TestValidateHandshakeResponseAcceptMismatch(t *testing.T) {
	req, nonce, err := NewHandshakeRequest(bytes.NewReader(bytes.Repeat([]byte{0x01}, 16)), "example.com", "/")
	if err != nil {
		t.Fatalf("NewHandshakeRequest() error = %v", err)
	}

	resp := NewHandshakeResponse(req)
	resp.Header.Set("Sec-WebSocket-Accept", "not-the-right-value")

	if err := ValidateHandshakeResponse(resp, nonce); !errors.Is(err, ErrAcceptMismatch) {
		t.Errorf("ValidateHandshakeResponse() error = %v, want %v", err, ErrAcceptMismatch)
	}
}

func TestNewHandshakeResponseWithSubprotocol(t *testing.T) {
	req, _, err := NewHandshakeRequest(bytes.NewReader(bytes.Repeat([]byte{0x05}, 16)), "example.com", "/")
	if err != nil {
		t.Fatalf("NewHandshakeRequest() error = %v", err)
	}

	resp := NewHandshakeResponse(req, WithSubprotocol("chat"))
	if got := resp.Header.Get("Sec-WebSocket-Protocol"); got != "chat" {
		t.Errorf("Sec-WebSocket-Protocol = %q, want %q", got, "chat")
	}
}

func TestNewUpgradeRequiredResponse(t *testing.T) {
	resp := NewUpgradeRequiredResponse()
	if resp.Status != http.StatusUpgradeRequired {
		t.Errorf("Status = %d, want %d", resp.Status, http.StatusUpgradeRequired)
	}
	if resp.Header.Get("Sec-WebSocket-Version") != "13" {
		t.Errorf("Sec-WebSocket-Version = %q, want %q", resp.Header.Get("Sec-WebSocket-Version"), "13")
	}
}
