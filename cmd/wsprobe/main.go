// Wsprobe is a small command-line client and server for exercising the
// [websocket] package by hand: dial a remote endpoint and echo whatever
// it sends, or listen for incoming connections and echo them back.
//
// [websocket]: https://pkg.go.dev/github.com/brinewire/wsproto/pkg/websocket
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime/debug"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"

	"github.com/brinewire/wsproto/internal/logger"
	"github.com/brinewire/wsproto/pkg/websocket"
	"github.com/rs/zerolog"
	"github.com/tzrikka/xdg"
)

const (
	configDirName  = "wsprobe"
	configFileName = "config.toml"
)

func main() {
	bi, _ := debug.ReadBuildInfo()

	cmd := &cli.Command{
		Name:    "wsprobe",
		Usage:   "dial or serve a WebSocket connection and echo messages",
		Version: bi.Main.Version,
		Commands: []*cli.Command{
			dialCommand(),
			serveCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// configFile returns the path to wsprobe's configuration file, creating
// an empty one if it doesn't already exist.
func configFile() altsrc.StringSourcer {
	path, err := xdg.CreateFile(xdg.ConfigHome, configDirName, configFileName)
	if err != nil {
		logger.FatalError("failed to create config file", err)
	}
	return altsrc.StringSourcer(path)
}

func newLogger(pretty bool) zerolog.Logger {
	if pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func dialCommand() *cli.Command {
	path := configFile()
	return &cli.Command{
		Name:  "dial",
		Usage: "connect to a WebSocket server and echo its messages back to it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "url",
				Usage:    "WebSocket URL to dial (ws:// or wss://)",
				Required: true,
				Sources: cli.NewValueSourceChain(
					cli.EnvVar("WSPROBE_URL"),
					toml.TOML("dial.url", path),
				),
			},
			&cli.BoolFlag{
				Name:  "pretty-log",
				Usage: "human-readable console logging, instead of JSON",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			l := newLogger(cmd.Bool("pretty-log"))
			conn, err := websocket.Dial(ctx, cmd.String("url"), websocket.WithDialLogger(l))
			if err != nil {
				return fmt.Errorf("dial failed: %w", err)
			}
			defer conn.Close(websocket.StatusNormalClosure, "")

			return echoLoop(l, conn)
		},
	}
}

func serveCommand() *cli.Command {
	path := configFile()
	return &cli.Command{
		Name:  "serve",
		Usage: "accept WebSocket connections and echo their messages back",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "address to listen on",
				Value: "localhost:8080",
				Sources: cli.NewValueSourceChain(
					cli.EnvVar("WSPROBE_ADDR"),
					toml.TOML("serve.addr", path),
				),
			},
			&cli.BoolFlag{
				Name:  "pretty-log",
				Usage: "human-readable console logging, instead of JSON",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			l := newLogger(cmd.Bool("pretty-log"))
			return serve(l, cmd.String("addr"))
		},
	}
}

func serve(l zerolog.Logger, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	defer ln.Close()

	l.Info().Str("addr", addr).Msg("listening for WebSocket connections")

	for {
		rawConn, err := ln.Accept()
		if err != nil {
			l.Error().Err(err).Msg("accept failed")
			continue
		}
		go handleConn(l, rawConn)
	}
}

func handleConn(l zerolog.Logger, rawConn net.Conn) {
	defer rawConn.Close()

	conn, err := websocket.Accept(rawConn, websocket.ServerConfig(), websocket.WithAcceptLogger(l))
	if err != nil {
		l.Error().Err(err).Str("remote", rawConn.RemoteAddr().String()).Msg("handshake failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := echoLoop(l, conn); err != nil {
		l.Error().Err(err).Msg("connection ended")
	}
}

// echoLoop reads messages until the connection closes, echoing text and
// binary payloads back to the sender and logging everything else.
func echoLoop(l zerolog.Logger, conn *websocket.Connection) error {
	for {
		msg, err := conn.Recv()
		if err != nil {
			return err
		}
		if msg == nil {
			l.Info().Stringer("state", conn.State()).Msg("connection closed")
			return nil
		}

		switch msg.Type {
		case websocket.MessageText:
			l.Info().Str("text", msg.Text).Msg("received text message")
			if err := conn.Send(websocket.TextMessage(msg.Text)); err != nil {
				return err
			}
		case websocket.MessageBinary:
			l.Info().Int("len", len(msg.Data)).Msg("received binary message")
			if err := conn.Send(websocket.BinaryMessage(msg.Data)); err != nil {
				return err
			}
		case websocket.MessagePing, websocket.MessagePong:
			l.Debug().Stringer("type", msg.Type).Int("len", len(msg.Data)).Msg("received control message")
		default:
			l.Warn().Stringer("type", msg.Type).Msg("unexpected message type")
		}
	}
}
