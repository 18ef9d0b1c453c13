package transport

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nerrad567/fujitsu-bridge/internal/infrastructure/config"
)

// DefaultReadTimeout bounds a single Read when none is configured.
const DefaultReadTimeout = 100 * time.Millisecond

// Conn is a bus byte stream. Read returns (0, nil) after the read timeout
// elapses with no data.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// Open opens the transport selected by cfg. It returns the connection and
// a short description for logging.
//
// A WebSocket URL with a username but no password prompts for the password
// (see PromptPassword).
func Open(ctx context.Context, cfg config.HeatPumpConfig) (Conn, string, error) {
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	switch {
	case cfg.URL != "":
		password := cfg.Password
		if cfg.Username != "" && password == "" {
			var err error
			password, err = PromptPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocket(ctx, WebSocketOptions{
			URL:         cfg.URL,
			Username:    cfg.Username,
			Password:    password,
			NoSSLVerify: cfg.NoSSLVerify,
			ReadTimeout: readTimeout,
		})
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("websocket %s", cfg.URL), nil

	case cfg.Port != "":
		conn, err := OpenSerial(cfg.Port, cfg.Baud, readTimeout)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("serial %s @ %d baud", cfg.Port, cfg.Baud), nil

	default:
		return nil, "", ErrNoTransport
	}
}
