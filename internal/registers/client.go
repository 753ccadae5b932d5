package registers

import (
	"errors"
	"fmt"
	"time"

	"github.com/simonvetter/modbus"

	"github.com/cranevision/pose-telemetry/internal/logger"
)

// ErrConnectionLost is returned when a register write failed and the
// connection was torn down. The next write attempts to reconnect, subject
// to backoff.
var ErrConnectionLost = errors.New("register connection lost")

const (
	clientTimeout = 2 * time.Second
	minBackoff    = 500 * time.Millisecond
	maxBackoff    = 5 * time.Second
)

// Client writes register blocks to a remote register server. It reconnects
// lazily with exponential backoff; a write during the backoff window fails
// immediately with ErrConnectionLost so the telemetry loop keeps pacing.
type Client struct {
	mc        *modbus.ModbusClient
	connected bool
	backoff   time.Duration
	nextTry   time.Time

	// OnReconnect, when set, is called each time the write path
	// re-establishes a dropped connection.
	OnReconnect func()
}

// NewClient prepares a client for the given endpoint. No connection is made
// until the first write.
func NewClient(host string, port int, unitID uint8) (*Client, error) {
	mc, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", host, port),
		Timeout: clientTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create modbus client: %w", err)
	}
	if err := mc.SetUnitId(unitID); err != nil {
		return nil, fmt.Errorf("set unit id: %w", err)
	}
	return &Client{mc: mc, backoff: minBackoff}, nil
}

// Connect opens the connection eagerly. It makes one attempt and reports;
// a failure here is not fatal because writes reconnect lazily.
func (c *Client) Connect() error {
	if c.connected {
		return nil
	}
	if err := c.mc.Open(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	c.connected = true
	c.backoff = minBackoff
	return nil
}

func (c *Client) ensureOpen() error {
	if c.connected {
		return nil
	}
	if time.Now().Before(c.nextTry) {
		return ErrConnectionLost
	}
	if err := c.mc.Open(); err != nil {
		c.nextTry = time.Now().Add(c.backoff)
		c.backoff *= 2
		if c.backoff > maxBackoff {
			c.backoff = maxBackoff
		}
		return fmt.Errorf("%w: reconnect failed: %v", ErrConnectionLost, err)
	}
	logger.Info("Registers", "modbus client connected")
	c.connected = true
	c.backoff = minBackoff
	if c.OnReconnect != nil {
		c.OnReconnect()
	}
	return nil
}

// WriteRegisters writes a contiguous block at addr, reconnecting first if
// the previous write lost the connection.
func (c *Client) WriteRegisters(addr uint16, values []uint16) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	if err := c.mc.WriteRegisters(addr, values); err != nil {
		c.mc.Close()
		c.connected = false
		c.nextTry = time.Now().Add(c.backoff)
		return fmt.Errorf("%w: write at %d: %v", ErrConnectionLost, addr, err)
	}
	return nil
}

// ReadRegisters reads a contiguous holding-register block at addr.
func (c *Client) ReadRegisters(addr, quantity uint16) ([]uint16, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}
	regs, err := c.mc.ReadRegisters(addr, quantity, modbus.HOLDING_REGISTER)
	if err != nil {
		c.mc.Close()
		c.connected = false
		c.nextTry = time.Now().Add(c.backoff)
		return nil, fmt.Errorf("%w: read at %d: %v", ErrConnectionLost, addr, err)
	}
	return regs, nil
}

// Close tears the connection down.
func (c *Client) Close() error {
	if !c.connected {
		return nil
	}
	c.connected = false
	return c.mc.Close()
}
