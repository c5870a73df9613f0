package relay

import (
	"time"

	"github.com/livekit/protocol/auth"
)

// SignToken lets a viewer join the monitor room; viewers never publish.
func SignToken(c Conf, lifetime time.Duration, uid, name string) (token string, err error) {
	if !c.Enabled() {
		err = ErrNotConfigured
		return
	}
	canPublish := false
	canSubscribe := true

	at := auth.NewAccessToken(c.Key, c.Secret)
	grant := &auth.VideoGrant{
		RoomJoin:     true,
		Room:         c.Room,
		CanPublish:   &canPublish,
		CanSubscribe: &canSubscribe,
	}

	at.AddGrant(grant).SetIdentity(uid)
	if len(name) > 0 {
		at.SetName(name)
	}
	at.SetValidFor(lifetime)

	token, err = at.ToJWT()
	return
}
