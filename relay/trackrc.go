package relay

import (
	"io"
	"log"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"
)

// NewTrackReadCloser reads rr as a sample stream for a reader track: H.264
// comes out as Annex B, one access unit per refill; anything else is
// treated as opus, one packet per Read.
func NewTrackReadCloser(rr RtpReader, mime string) io.ReadCloser {
	trc := TrackReadCloser{rtpReader: rr}
	if mime == webrtc.MimeTypeH264 {
		trc.read = trc.h264Read
		trc.logtype = "h264"
	} else {
		trc.read = trc.opusRead
		trc.logtype = "opus"
	}
	return &trc
}

type TrackReadCloser struct {
	mu sync.Mutex

	rtpReader RtpReader
	data      []byte
	seq       uint16
	synced    bool

	read func(b []byte) (n int, err error)

	logtype string
}

func (trc *TrackReadCloser) Read(b []byte) (n int, err error) {
	return trc.read(b)
}

func (trc *TrackReadCloser) opusRead(b []byte) (n int, err error) {
	trc.mu.Lock()
	defer trc.mu.Unlock()

	for {
		var p *rtp.Packet
		if p, _, err = trc.rtpReader.ReadRTP(); err != nil {
			return
		}
		trc.sequence(p)
		// dtx and padding
		if len(p.Payload) == 0 {
			continue
		}
		if ids := p.GetExtensionIDs(); len(ids) > 0 {
			trc.Println("ext:", ids, p.GetExtension(ids[0]))
		}
		if len(p.Payload) > len(b) {
			trc.Println("packet truncated", len(p.Payload), len(b))
		}
		n = copy(b, p.Payload)
		return
	}
}

func (trc *TrackReadCloser) h264Read(b []byte) (n int, err error) {
	trc.mu.Lock()
	defer trc.mu.Unlock()

	if len(trc.data) == 0 {
		pkt := codecs.H264Packet{}
		for {
			var p *rtp.Packet
			if p, _, err = trc.rtpReader.ReadRTP(); err != nil {
				return
			}
			trc.sequence(p)

			if len(p.Payload) == 0 {
				continue
			}
			if p.Payload[0]&0x80 != 0 {
				trc.Println("forbidden bit", p.Payload[0])
				continue
			}
			// padding only
			if nri := (p.Payload[0] >> 5) & 3; nri == 0 && len(p.Payload) <= 2 {
				continue
			}

			v, uerr := pkt.Unmarshal(p.Payload)
			if uerr != nil {
				trc.Println("payload unmarshal err", uerr)
			}
			trc.data = append(trc.data, v...)
			if p.Marker && len(trc.data) > 0 {
				break
			}
		}
	}

	n = copy(b, trc.data)
	trc.data = trc.data[n:]
	return
}

func (trc *TrackReadCloser) sequence(p *rtp.Packet) {
	if trc.synced && trc.seq != p.SequenceNumber {
		trc.Println("seq mismatch, expected", trc.seq, "got", p.SequenceNumber)
	}
	trc.seq = p.SequenceNumber + 1
	trc.synced = true
}

func (trc *TrackReadCloser) Close() (err error) {
	return trc.rtpReader.Close()
}

func (trc *TrackReadCloser) Println(i ...interface{}) {
	log.Println("trc", trc.logtype, i)
}
