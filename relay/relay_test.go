package relay

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/alex2wong/how-is-your-song-sub000/capture"
	"github.com/livekit/protocol/auth"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	webrtc "github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type packets struct {
	q      []*rtp.Packet
	closed bool
}

func (p *packets) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	if len(p.q) == 0 {
		return nil, nil, io.EOF
	}
	pkt := p.q[0]
	p.q = p.q[1:]
	return pkt, nil, nil
}

func (p *packets) Close() error {
	p.closed = true
	return nil
}

func packet(seq uint16, marker bool, payload ...byte) *rtp.Packet {
	return &rtp.Packet{
		Header:  rtp.Header{Version: 2, SequenceNumber: seq, Marker: marker, PayloadType: 96},
		Payload: payload,
	}
}

func TestTrackReadCloserAccessUnit(t *testing.T) {
	src := &packets{q: []*rtp.Packet{
		packet(1, false, 0x67, 0x42, 0x00), // sps
		packet(2, false, 0x00),             // padding
		packet(3, true, 0x65, 0x88, 0x84),  // idr slice, end of unit
		packet(4, true, 0x41, 0x9a),
	}}
	rc := NewTrackReadCloser(src, webrtc.MimeTypeH264)

	b := make([]byte, 64)
	n, err := rc.Read(b)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 1, 0x67, 0x42, 0x00, 0, 0, 0, 1, 0x65, 0x88, 0x84}, b[:n])

	// small reads drain the buffered unit before fetching more
	small := make([]byte, 3)
	n, err = rc.Read(small)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0}, small[:n])
	n, err = rc.Read(b)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0x41, 0x9a}, b[:n])

	_, err = rc.Read(b)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, rc.Close())
	assert.True(t, src.closed)
}

func TestTrackReadCloserOpus(t *testing.T) {
	src := &packets{q: []*rtp.Packet{
		packet(7, true, 0xfc, 0x01, 0x02),
		packet(8, false), // dtx
		packet(9, false, 0xfc, 0x03),
	}}
	rc := NewTrackReadCloser(src, webrtc.MimeTypeOpus)

	// one packet per read, never merged
	b := make([]byte, 64)
	n, err := rc.Read(b)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfc, 0x01, 0x02}, b[:n])
	n, err = rc.Read(b)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfc, 0x03}, b[:n])

	_, err = rc.Read(b)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, rc.Close())
	assert.True(t, src.closed)
}

func TestOpusArgs(t *testing.T) {
	args := strings.Join(opusArgs(40000), " ")
	assert.Contains(t, args, "-f s16le -ar 48000 -ac 2 -i pipe:0")
	assert.Contains(t, args, "-c:a libopus")
	assert.True(t, strings.HasSuffix(args, "-f rtp rtp://127.0.0.1:40000"))
}

func TestConfAudioPort(t *testing.T) {
	assert.Equal(t, 0, Conf{}.AudioRTPPort())
	assert.Equal(t, 5006, Conf{RTPPort: 5004}.AudioRTPPort())
}

func TestMonitorAudioBeforeBegin(t *testing.T) {
	m := NewMonitor(context.Background(), Conf{})
	assert.Nil(t, m.Audio())
}

func TestUdpReader(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := NewUdpReader(ctx, 0)
	require.NoError(t, r.Listen())
	addr := r.Addr().(*net.UDPAddr)

	conn, err := net.DialUDP("udp", nil, addr)
	require.NoError(t, err)
	defer conn.Close()

	raw, err := packet(42, true, 0x65, 1, 2).Marshal()
	require.NoError(t, err)
	_, err = conn.Write(raw)
	require.NoError(t, err)

	p, _, err := r.ReadRTP()
	require.NoError(t, err)
	assert.Equal(t, uint16(42), p.SequenceNumber)
	assert.True(t, p.Marker)
	assert.Equal(t, []byte{0x65, 1, 2}, p.Payload)

	require.NoError(t, r.Close())
	_, _, err = r.ReadRTP()
	assert.ErrorIs(t, err, ErrReaderClosed)
}

func TestSignToken(t *testing.T) {
	c := Conf{Ws: "ws://localhost:7880", Key: "devkey", Secret: "0123456789abcdef0123456789abcdef", Room: "mv-monitor"}

	tok, err := SignToken(c, time.Hour, "viewer-1", "Viewer")
	require.NoError(t, err)

	v, err := auth.ParseAPIToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "devkey", v.APIKey())
	grants, err := v.Verify(c.Secret)
	require.NoError(t, err)
	assert.Equal(t, "viewer-1", grants.Identity)
	assert.Equal(t, "Viewer", grants.Name)
	require.NotNil(t, grants.Video)
	assert.Equal(t, "mv-monitor", grants.Video.Room)
	assert.True(t, grants.Video.RoomJoin)
	assert.False(t, *grants.Video.CanPublish)

	_, err = SignToken(Conf{}, time.Hour, "x", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestMonitorDisabled(t *testing.T) {
	m := NewMonitor(context.Background(), Conf{})
	assert.ErrorIs(t, m.Begin(capture.Params{Width: 64, Height: 64, FPS: 30}), ErrNotConfigured)
	// never begun, so nothing to do
	m.WriteFrame(nil, 0)
	m.End()
}
