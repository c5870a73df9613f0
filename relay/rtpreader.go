package relay

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
)

var ErrReaderClosed = errors.New("rtp reader closed")

type RtpReader interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
	Close() (err error)
}

// UdpReader takes the RTP preview the recorder sends to a local port.
type UdpReader struct {
	ctx    context.Context
	cancel context.CancelFunc
	Port   int

	mq   chan []byte
	fill int32

	once  sync.Once
	ready chan struct{}
	conn  *net.UDPConn
	err   error
}

func NewUdpReader(ctx context.Context, port int) *UdpReader {
	u := &UdpReader{
		mq:    make(chan []byte, rtpqueue),
		ready: make(chan struct{}),
		Port:  port,
	}
	u.ctx, u.cancel = context.WithCancel(ctx)
	return u
}

// Listen binds the port; ReadRTP does it on first use otherwise.
func (r *UdpReader) Listen() error {
	r.once.Do(r.start)
	<-r.ready
	return r.err
}

// Addr is the bound address, nil before Listen.
func (r *UdpReader) Addr() net.Addr {
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

func (r *UdpReader) start() {
	r.conn, r.err = net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: r.Port})
	close(r.ready)
	if r.err != nil {
		r.Println(r.err)
		return
	}
	r.conn.SetReadBuffer(rtplinuxbuf)

	go func() {
		<-r.ctx.Done()
		r.conn.Close()
	}()

	go func() {
		defer func() {
			r.Println("closing", r.Port)
			close(r.mq)
		}()
		thr := int32(0.7 * float64(rtpqueue))

		r.Println("starting rtp thread", r.Port)
		for {
			p := make([]byte, 4096)
			n, _, err := r.conn.ReadFrom(p)
			if err != nil {
				if r.ctx.Err() == nil {
					r.Println("udp rd", err)
				}
				return
			}
			x := atomic.AddInt32(&r.fill, 1)
			select {
			case r.mq <- p[:n]:
			case <-r.ctx.Done():
				return
			}
			if x >= thr {
				r.Println("buffers in queue", x)
			}
		}
	}()
}

func (r *UdpReader) ReadRTP() (packet *rtp.Packet, attr interceptor.Attributes, err error) {
	if err = r.Listen(); err != nil {
		return
	}
	p, ok := <-r.mq
	if !ok {
		err = ErrReaderClosed
		return
	}
	atomic.AddInt32(&r.fill, -1)

	packet = &rtp.Packet{}
	err = packet.Unmarshal(p)
	return
}

func (r *UdpReader) Close() (err error) {
	r.Println("close()")
	r.cancel()
	return
}

func (r *UdpReader) Println(i ...interface{}) {
	log.Println("udp", i)
}
