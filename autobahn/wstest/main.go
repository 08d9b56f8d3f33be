// Wstest exercises [wsproto]'s WebSocket client and server against the
// fuzzing client/server of the [Autobahn Testsuite].
//
// Running it as a client ("wstest client") drives every enabled case
// against a local fuzzing server, listening on baseURL. Running it as a
// server ("wstest server") listens for the fuzzing client to dial in and
// run the same cases against [Accept] instead of [Dial].
//
// [wsproto]: https://pkg.go.dev/github.com/brinewire/wsproto/pkg/websocket
// [Autobahn Testsuite]: https://github.com/crossbario/autobahn-testsuite
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/brinewire/wsproto/internal/logger"
	"github.com/brinewire/wsproto/pkg/websocket"
)

const (
	baseURL  = "ws://127.0.0.1:9001"
	serveURL = "localhost:9002"
	agent    = "wsproto"
)

func main() {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})

	if len(os.Args) > 1 && os.Args[1] == "server" {
		runServer(l)
		return
	}
	runClient(l)
}

// runClient drives the client role: this package's [websocket.Dial]
// against the Autobahn fuzzing server.
//
// Not implemented by this package (so excluded in
// "config/fuzzingclient.json"):
//   - 12.* and 13.*: WebSocket compression (permessage-deflate).
func runClient(l zerolog.Logger) {
	n := getCaseCount(l)
	l.Info().Int("n", n).Msg("case count")

	for i := 1; i <= n; i++ {
		runClientCase(l, i)
	}
	updateReports(l)
}

func getCaseCount(l zerolog.Logger) int {
	conn, err := websocket.Dial(context.Background(), baseURL+"/getCaseCount")
	if err != nil {
		logger.FatalError("dial error", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	msg, err := conn.Recv()
	if err != nil {
		logger.FatalError("recv error", err)
	}
	if msg == nil {
		return 0
	}

	n, err := strconv.Atoi(msg.Text)
	if err != nil {
		logger.FatalError("invalid test case count", err)
	}
	return n
}

func updateReports(l zerolog.Logger) {
	l.Info().Msg("updating reports")

	url := fmt.Sprintf("%s/updateReports?agent=%s", baseURL, agent)
	conn, err := websocket.Dial(context.Background(), url)
	if err != nil {
		logger.FatalError("dial error", err)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func runClientCase(l zerolog.Logger, i int) {
	cl := l.With().Int("case", i).Logger()
	cl.Info().Msg("starting test")

	url := fmt.Sprintf("%s/runCase?case=%d&agent=%s", baseURL, i, agent)
	conn, err := websocket.Dial(context.Background(), url, websocket.WithDialLogger(cl))
	if err != nil {
		logger.FatalError("dial error", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	echoUntilClosed(cl, conn)
}

// runServer drives the server role: the fuzzing client dials in and
// pushes every enabled case at a listener built on [websocket.Accept].
func runServer(l zerolog.Logger) {
	ln, err := net.Listen("tcp", serveURL)
	if err != nil {
		logger.FatalError("listen error", err)
	}
	defer ln.Close()

	l.Info().Str("addr", serveURL).Msg("listening for Autobahn fuzzing client")

	for {
		rawConn, err := ln.Accept()
		if err != nil {
			l.Error().Err(err).Msg("accept error")
			continue
		}
		go func() {
			defer rawConn.Close()
			conn, err := websocket.Accept(rawConn, websocket.ServerConfig(), websocket.WithAcceptLogger(l))
			if err != nil {
				l.Error().Err(err).Msg("handshake error")
				return
			}
			defer conn.Close(websocket.StatusNormalClosure, "")
			echoUntilClosed(l, conn)
		}()
	}
}

// echoUntilClosed implements the Autobahn echo contract: every Text or
// Binary message received is sent back verbatim, until the connection
// reports it's done.
func echoUntilClosed(l zerolog.Logger, conn *websocket.Connection) {
	for {
		msg, err := conn.Recv()
		if err != nil {
			l.Error().Err(err).Msg("recv error")
			return
		}
		if msg == nil {
			l.Debug().Msg("connection closed")
			return
		}

		switch msg.Type {
		case websocket.MessageText:
			err = conn.Send(websocket.TextMessage(msg.Text))
		case websocket.MessageBinary:
			err = conn.Send(websocket.BinaryMessage(msg.Data))
		default:
			continue
		}

		if err != nil {
			l.Error().Err(err).Msg("echo error")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}
