package registers

import (
	"fmt"
	"sync"
	"time"

	"github.com/simonvetter/modbus"

	"github.com/cranevision/pose-telemetry/internal/logger"
)

// Store is the full holding-register address space hosted by the server
// process. Writes are last-writer-wins per offset. Readers may observe a
// torn update across the two registers of one float if they poll mid-write;
// the register map partitions writers, it does not lock fields together.
type Store struct {
	mu   sync.RWMutex
	regs []uint16
}

// NewStore allocates a register space of at least the given size.
func NewStore(size int) *Store {
	if size < 256 {
		size = 256
	}
	return &Store{regs: make([]uint16, size)}
}

// Write sets a contiguous register block.
func (s *Store) Write(addr uint16, values []uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(addr)+len(values) > len(s.regs) {
		return fmt.Errorf("write [%d,%d) outside register space of %d", addr, int(addr)+len(values), len(s.regs))
	}
	copy(s.regs[addr:], values)
	return nil
}

// Read copies a contiguous register block.
func (s *Store) Read(addr, quantity uint16) ([]uint16, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(addr)+int(quantity) > len(s.regs) {
		return nil, fmt.Errorf("read [%d,%d) outside register space of %d", addr, int(addr)+int(quantity), len(s.regs))
	}
	out := make([]uint16, quantity)
	copy(out, s.regs[addr:])
	return out, nil
}

// HandleHoldingRegisters services both the hook writer and any polling
// reader. Partitioning of writable ranges is by convention, not enforced
// here.
func (s *Store) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if req.IsWrite {
		if err := s.Write(req.Addr, req.Args); err != nil {
			return nil, modbus.ErrIllegalDataAddress
		}
		return req.Args, nil
	}
	regs, err := s.Read(req.Addr, req.Quantity)
	if err != nil {
		return nil, modbus.ErrIllegalDataAddress
	}
	return regs, nil
}

// HandleCoils rejects coil access; the address space is registers only.
func (s *Store) HandleCoils(req *modbus.CoilsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (s *Store) HandleDiscreteInputs(req *modbus.DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (s *Store) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	return nil, modbus.ErrIllegalFunction
}

// Server hosts the shared register space over Modbus TCP. One dropped
// client never affects the accept loop or the other connections.
type Server struct {
	store *Store
	srv   *modbus.ModbusServer
	addr  string
}

// NewServer wraps a store in a Modbus TCP server bound to listenAddr
// ("host:port").
func NewServer(listenAddr string, store *Store) (*Server, error) {
	srv, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        "tcp://" + listenAddr,
		Timeout:    30 * time.Second,
		MaxClients: 10,
	}, store)
	if err != nil {
		return nil, fmt.Errorf("create modbus server: %w", err)
	}
	return &Server{store: store, srv: srv, addr: listenAddr}, nil
}

// Start begins accepting clients.
func (s *Server) Start() error {
	if err := s.srv.Start(); err != nil {
		return fmt.Errorf("start modbus server on %s: %w", s.addr, err)
	}
	logger.Info("Registers", "modbus server listening on %s", s.addr)
	return nil
}

// Stop closes the listener and all client connections.
func (s *Server) Stop() error {
	return s.srv.Stop()
}

// Store returns the hosted register space for in-process writers.
func (s *Server) Store() *Store { return s.store }
