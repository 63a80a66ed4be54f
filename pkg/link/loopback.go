package link

import (
	"fmt"
	"net"
	"sync"

	"wlanrsn-go/pkg/eapol"
)

// FrameHandler consumes frames delivered by a medium.
type FrameHandler interface {
	HandleFrame(frame []byte) error
}

// Filter may inspect, modify or drop (by returning nil) a frame in flight.
type Filter func(frame []byte) []byte

// Loopback is an in-memory medium. Frames are queued on Send and delivered
// in FIFO order by Flush, routed by destination address.
type Loopback struct {
	mu     sync.Mutex
	queue  [][]byte
	ports  map[string]*Port
	filter Filter
}

func NewLoopback() *Loopback {
	return &Loopback{ports: make(map[string]*Port)}
}

// Port is a station's attachment to the medium. It implements Transport.
type Port struct {
	lb      *Loopback
	addr    net.HardwareAddr
	handler FrameHandler
}

// Port returns the port for addr, creating it if needed.
func (l *Loopback) Port(addr net.HardwareAddr) *Port {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.ports[addr.String()]; ok {
		return p
	}
	p := &Port{lb: l, addr: addr}
	l.ports[addr.String()] = p
	return p
}

// SetFilter installs f for all subsequent deliveries; nil removes it.
func (l *Loopback) SetFilter(f Filter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filter = f
}

// Attach sets the handler frames addressed to the port are delivered to.
func (p *Port) Attach(h FrameHandler) {
	p.lb.mu.Lock()
	defer p.lb.mu.Unlock()
	p.handler = h
}

func (p *Port) Send(frame []byte) error {
	p.lb.mu.Lock()
	defer p.lb.mu.Unlock()
	p.lb.queue = append(p.lb.queue, append([]byte(nil), frame...))
	return nil
}

// Pending reports the number of queued frames.
func (l *Loopback) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Flush delivers queued frames, including frames sent while flushing, until
// the queue is empty. It returns the number of frames delivered and the
// errors returned by handlers. The filter and handlers run without the
// medium's lock held, so they may Send.
func (l *Loopback) Flush() (int, []error) {
	delivered := 0
	var errs []error
	for {
		frame, filter, ok := l.pop()
		if !ok {
			return delivered, errs
		}
		if filter != nil {
			if frame = filter(frame); frame == nil {
				continue
			}
		}
		handler := l.route(frame)
		if handler == nil {
			continue
		}
		delivered++
		if err := handler.HandleFrame(frame); err != nil {
			errs = append(errs, err)
		}
	}
}

// pop removes the head of the queue and returns it with the current filter.
func (l *Loopback) pop() ([]byte, Filter, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, nil, false
	}
	frame := l.queue[0]
	l.queue = l.queue[1:]
	return frame, l.filter, true
}

// route returns the handler of the port frame is addressed to, if any.
func (l *Loopback) route(frame []byte) FrameHandler {
	_, dst, _, err := eapol.DecodeEthernet(frame)
	if err != nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.ports[dst.String()]
	if !ok {
		return nil
	}
	return p.handler
}

func (p *Port) String() string {
	return fmt.Sprintf("loopback port %s", p.addr)
}
