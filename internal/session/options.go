package session

import (
	"time"

	"github.com/gamemeet/gamemeet/internal/util/websockutil"
)

type Options struct {
	// RetryInterval is the pause between matching attempts while a
	// connection is waiting for a room.
	RetryInterval time.Duration `toml:"retry-interval"`
	// MsgRate and MsgBurst bound the inbound message rate per connection.
	MsgRate   float64             `toml:"msg-rate"`
	MsgBurst  int                 `toml:"msg-burst"`
	WebSocket websockutil.Options `toml:"websocket"`
}

func (o *Options) FillDefaults() {
	if o.RetryInterval == 0 {
		o.RetryInterval = 1 * time.Second
	}
	if o.MsgRate == 0 {
		o.MsgRate = 10
	}
	if o.MsgBurst == 0 {
		o.MsgBurst = 20
	}
	o.WebSocket.FillDefaults()
}
