package protocol

import (
	"errors"

	"tinygo.org/x/drivers"
)

// MaxReadLen is the largest read a single response can carry
const MaxReadLen = PayloadMax - 3

// ErrBusTimeout may be returned by a bridge I2C bus to report a stuck bus
// instead of a missing acknowledge
var ErrBusTimeout = errors.New("i2c bus timeout")

// Responder is the bridge MCU end of the link. Received bytes are fed in;
// each complete request runs one I2C transaction and is answered with
// exactly one response frame carrying the request's sequence byte.
type Responder struct {
	dev  drivers.I2C
	in   *FifoBuffer
	out  ScratchOutput
	read [MaxReadLen]byte

	Requests uint32
	Errors   uint32
}

// NewResponder serves requests against dev
func NewResponder(dev drivers.I2C) *Responder {
	return &Responder{dev: dev, in: NewFifoBuffer(4 * FrameMax)}
}

// Feed buffers data and answers every complete request through send. Send
// errors are returned immediately; the rest of data is dropped.
func (r *Responder) Feed(data []byte, send func([]byte) error) error {
	for len(data) > 0 {
		n := r.in.Write(data)
		data = data[n:]
		if err := r.drain(send); err != nil {
			return err
		}
		if n == 0 {
			// full of bytes that never formed a frame
			r.in.Reset()
			r.Errors++
		}
	}
	return nil
}

// Reset drops any partial request, for example after a reconnect
func (r *Responder) Reset() {
	r.in.Reset()
}

func (r *Responder) drain(send func([]byte) error) error {
	for r.in.Available() > 0 {
		f, used, err := ParseFrame(r.in.Data())
		if errors.Is(err, ErrNeedMore) {
			r.in.Pop(used)
			return nil
		}
		if err != nil {
			r.in.Pop(used)
			r.Errors++
			continue
		}

		resp := r.serve(f.Payload)
		r.in.Pop(used)

		r.out.Reset()
		resp.Encode(&r.out)
		msg, err := EncodeFrame(f.Seq, r.out.Result())
		if err != nil {
			return err
		}
		if err := send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Responder) serve(payload []byte) TxResponse {
	req, err := DecodeTxRequest(payload)
	if err != nil || req.ReadLen > MaxReadLen {
		r.Errors++
		return TxResponse{Status: StatusBadReq}
	}
	r.Requests++

	rd := r.read[:req.ReadLen]
	if err := r.dev.Tx(req.Addr, req.Write, rd); err != nil {
		if errors.Is(err, ErrBusTimeout) {
			return TxResponse{Status: StatusTimeout}
		}
		return TxResponse{Status: StatusNack}
	}
	return TxResponse{Status: StatusOK, Read: rd}
}
