package relay

import (
	"context"
	"io"
	"log"
	"time"

	lksdk "github.com/livekit/server-sdk-go"
)

const (
	rtpqueue    = 200
	rtplinuxbuf = 200000

	lkAudioFrame = 20 * time.Millisecond
)

// Relay publishes local streams into one room and leaves it when its
// context ends.
type Relay struct {
	*lksdk.Room

	context.Context
	context.CancelFunc
}

func NewRelay(ctx context.Context, room *lksdk.Room) (r *Relay, err error) {
	r = &Relay{Room: room}
	r.Context, r.CancelFunc = context.WithCancel(ctx)

	go func() {
		<-r.Context.Done()
		r.Room.Disconnect()
	}()
	return
}

// Connect joins room as identity, without subscribing to anybody.
func Connect(ctx context.Context, c Conf, identity string) (r *Relay, err error) {
	room, err := lksdk.ConnectToRoom(c.Ws, lksdk.ConnectInfo{
		APIKey:              c.Key,
		APISecret:           c.Secret,
		RoomName:            c.Room,
		ParticipantIdentity: identity,
		ParticipantName:     identity,
	}, nil, func(cp *lksdk.ConnectParams) { cp.AutoSubscribe = false })
	if err != nil {
		return
	}
	return NewRelay(ctx, room)
}

func (r *Relay) AddReadCloser(rc io.ReadCloser, mime string, frame time.Duration) (pub *lksdk.LocalTrackPublication, err error) {
	track, err := lksdk.NewLocalReaderTrack(rc, mime, lksdk.ReaderTrackWithFrameDuration(frame))
	if err != nil {
		return
	}
	if pub, err = r.Room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{}); err != nil {
		return
	}
	r.Println("relaying rc", mime)
	return
}

func (r *Relay) Close() {
	r.Println("closing")
	r.CancelFunc()
}

func (r *Relay) Println(i ...interface{}) {
	log.Println("relay", i)
}
