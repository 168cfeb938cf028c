package config

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/zylisp/harold/protocol"
)

var (
	// ErrInvalidCodec indicates a codec name NewCodec does not know.
	ErrInvalidCodec = errors.New("invalid codec")
	// ErrInvalidLogLevel indicates a level name zerolog cannot parse.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

func (c *Config) validate() error {
	var errs []error

	switch c.Codec {
	case protocol.FormatJSON, protocol.FormatMsgpack:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidCodec, c.Codec))
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level))
	}

	return errors.Join(errs...)
}
