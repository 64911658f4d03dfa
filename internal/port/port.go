package port

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goburrow/serial"
)

// Port is an open serial link.
type Port interface {
	io.ReadWriteCloser
}

// Opener opens the port with the given identifier (COM3, /dev/ttyUSB0, ...).
type Opener func(id string) (Port, error)

// Serial line defaults of the pump firmware.
const (
	DefaultBaudRate    = 9600
	DefaultReadTimeout = 100 * time.Millisecond
	dataBits           = 8
	stopBits           = 1
	parityNone         = "N"
)

// ErrTimeout is returned by Read when no data arrived within the read timeout.
var ErrTimeout = errors.New("port: read timeout")

// Config holds the serial line settings shared by every candidate port.
type Config struct {
	// BaudRate is the line speed.
	BaudRate int
	// ReadTimeout bounds each Read call.
	ReadTimeout time.Duration
}

// OpenSerial returns an Opener for real serial devices.
func OpenSerial(cfg Config) Opener {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = DefaultBaudRate
	}

	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	return func(id string) (Port, error) {
		p, err := serial.Open(&serial.Config{
			Address:  id,
			BaudRate: cfg.BaudRate,
			DataBits: dataBits,
			StopBits: stopBits,
			Parity:   parityNone,
			Timeout:  cfg.ReadTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", id, err)
		}

		return &serialPort{port: p}, nil
	}
}

// serialPort maps the driver timeout error onto ErrTimeout.
type serialPort struct {
	// port is the underlying driver port.
	port serial.Port
}

// Read implements io.Reader.
func (p *serialPort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if errors.Is(err, serial.ErrTimeout) {
		return n, ErrTimeout
	}

	return n, err
}

// Write implements io.Writer.
func (p *serialPort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close implements io.Closer.
func (p *serialPort) Close() error {
	return p.port.Close()
}
