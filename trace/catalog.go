package trace

import (
	"sort"

	"golang.org/x/xerrors"
)

// ErrUnknownStream is returned when a FIFO address has no declared stream.
var ErrUnknownStream = xerrors.New("stream address not declared")

// ErrUnknownInterface is returned when an AXI address maps to no interface.
var ErrUnknownInterface = xerrors.New("axi address not covered by any interface")

// StreamID is the dense identity assigned to a declared FIFO stream.
type StreamID int

// InterfaceID is the dense identity assigned to a declared AXI interface.
type InterfaceID int

// Stream is a FIFO descriptor. Identity and equality are by Addr alone
// (spec.md §3).
type Stream struct {
	ID    StreamID
	Addr  uint64
	Name  string
	Depth int // UnboundedDepth if no fixed depth was declared
}

// Interface is an AXI master interface descriptor. Identity and equality
// are by Addr alone (spec.md §3).
type Interface struct {
	ID      InterfaceID
	Addr    uint64
	Name    string
	Latency int
}

// Catalog interns the Stream and Interface descriptors declared by
// spec_channel/spec_interface tokens as the resolver encounters them.
// Interfaces are kept sorted by address so that an AXI address can be
// mapped to its owning interface by greatest-address-not-exceeding lookup.
type Catalog struct {
	streamByAddr map[uint64]*Stream
	streams      []*Stream

	ifaceByAddr map[uint64]*Interface
	ifaces      []*Interface // kept sorted by Addr
}

// NewCatalog returns an empty descriptor catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		streamByAddr: make(map[uint64]*Stream),
		ifaceByAddr:  make(map[uint64]*Interface),
	}
}

// DeclareStream interns a spec_channel declaration, assigning a dense ID on
// first sight. Re-declaring the same address returns the existing Stream.
func (c *Catalog) DeclareStream(addr uint64, name string, depth int) *Stream {
	if s, ok := c.streamByAddr[addr]; ok {
		return s
	}
	s := &Stream{ID: StreamID(len(c.streams)), Addr: addr, Name: name, Depth: depth}
	c.streams = append(c.streams, s)
	c.streamByAddr[addr] = s
	return s
}

// DeclareInterface interns a spec_interface declaration, assigning a dense
// ID on first sight and keeping the interface list address-sorted.
func (c *Catalog) DeclareInterface(addr uint64, name string, latency int) *Interface {
	if iface, ok := c.ifaceByAddr[addr]; ok {
		return iface
	}
	iface := &Interface{ID: InterfaceID(len(c.ifaces)), Addr: addr, Name: name, Latency: latency}
	c.ifaceByAddr[addr] = iface

	i := sort.Search(len(c.ifaces), func(i int) bool { return c.ifaces[i].Addr >= addr })
	c.ifaces = append(c.ifaces, nil)
	copy(c.ifaces[i+1:], c.ifaces[i:])
	c.ifaces[i] = iface
	return iface
}

// Stream returns the declared stream at addr.
func (c *Catalog) Stream(addr uint64) (*Stream, error) {
	s, ok := c.streamByAddr[addr]
	if !ok {
		return nil, xerrors.Errorf("stream at address %#x: %w", addr, ErrUnknownStream)
	}
	return s, nil
}

// InterfaceForAddr returns the interface owning addr: the declared
// interface with the greatest address not exceeding addr (spec.md §6.1).
func (c *Catalog) InterfaceForAddr(addr uint64) (*Interface, error) {
	n := len(c.ifaces)
	i := sort.Search(n, func(i int) bool { return c.ifaces[i].Addr > addr })
	if i == 0 {
		return nil, xerrors.Errorf("axi address %#x: %w", addr, ErrUnknownInterface)
	}
	return c.ifaces[i-1], nil
}

// Streams returns the interned streams in ID order.
func (c *Catalog) Streams() []*Stream { return c.streams }

// Interfaces returns the interned interfaces sorted by address.
func (c *Catalog) Interfaces() []*Interface { return c.ifaces }
