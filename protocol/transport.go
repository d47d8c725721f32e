package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrTimeout = errors.New("response timeout")
	ErrClosed  = errors.New("transport closed")
)

// HostTransport runs request/response exchanges over a serial link.
// One request is in flight at a time; the response is matched on its
// sequence byte and anything else is discarded as stale.
type HostTransport struct {
	port io.ReadWriteCloser

	mu  sync.Mutex // serialises Exchange
	seq uint8

	frames chan Frame
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once

	badFrames   atomic.Uint32
	staleFrames atomic.Uint32
}

// NewHostTransport starts the background reader on port
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:   port,
		seq:    SeqDest,
		frames: make(chan Frame, 4),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// Exchange sends payload and waits up to timeout for the matching response
// payload. It does not retry.
func (t *HostTransport) Exchange(payload []byte, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seq := t.seq
	t.seq = NextSeq(seq)

	msg, err := EncodeFrame(seq, payload)
	if err != nil {
		return nil, err
	}

	// Drop anything a previous timed-out exchange left behind
	for len(t.frames) > 0 {
		<-t.frames
		t.staleFrames.Add(1)
	}

	if err := t.write(msg); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case f := <-t.frames:
			if f.Seq != seq {
				t.staleFrames.Add(1)
				continue
			}
			return f.Payload, nil
		case <-timer.C:
			return nil, fmt.Errorf("%w after %v (seq 0x%02x)", ErrTimeout, timeout, seq)
		case <-t.stop:
			return nil, ErrClosed
		}
	}
}

func (t *HostTransport) write(msg []byte) error {
	n, err := t.port.Write(msg)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if n != len(msg) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}
	return nil
}

func (t *HostTransport) stopped() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

// readLoop reassembles frames from port reads
func (t *HostTransport) readLoop() {
	defer close(t.done)

	in := NewFifoBuffer(4 * FrameMax * 2)
	buf := make([]byte, 2*FrameMax)
	for {
		n, err := t.port.Read(buf)
		if t.stopped() {
			return
		}
		if n > 0 {
			in.Write(buf[:n])
			t.drain(in)
		}
		if err != nil || n == 0 {
			// Serial read timeouts come back as EOF; keep polling
			time.Sleep(time.Millisecond)
		}
	}
}

func (t *HostTransport) drain(in *FifoBuffer) {
	for {
		f, n, err := ParseFrame(in.Data())
		if err == nil {
			// Payload aliases the ring
			f.Payload = append([]byte(nil), f.Payload...)
		}
		in.Pop(n)
		switch {
		case err == nil:
			select {
			case t.frames <- f:
			default:
				t.staleFrames.Add(1)
			}
		case errors.Is(err, ErrNeedMore):
			return
		default:
			t.badFrames.Add(1)
		}
	}
}

// BadFrames returns the number of frames dropped for framing or CRC errors
func (t *HostTransport) BadFrames() uint32 { return t.badFrames.Load() }

// StaleFrames returns the number of responses that matched no request
func (t *HostTransport) StaleFrames() uint32 { return t.staleFrames.Load() }

// Close stops the reader and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.stop)
		err = t.port.Close()
		<-t.done
	})
	return err
}
