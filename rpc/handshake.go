package rpc

import (
	"github.com/sumup/checkout/channel"
	"github.com/sumup/checkout/gate"
	"github.com/sumup/checkout/message"
)

// InitHook runs when the handshake arrives, before the gate is resolved.
type InitHook func(ev channel.Event, reply func(message.Message) error)

// ResolveOnInit resolves ready the first time ch receives "<namespace>:init".
// The listener stays registered so a reloaded frame runs hook again; the
// gate itself settles only once.
func ResolveOnInit(ch *channel.Channel, ready *gate.Ready, namespace string, hook InitHook) channel.ListenerID {
	initType := message.InitType(namespace)
	return ch.OnReceive(func(ev channel.Event, reply func(message.Message) error) {
		if ev.Message.Type != initType {
			return
		}
		if hook != nil {
			hook(ev, reply)
		}
		ready.Resolve(struct{}{})
	})
}
