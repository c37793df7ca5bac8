// Package checkout embeds the hosted SumUp checkout into a host page and
// talks to it over cross-document messages.
//
// The page itself is abstracted behind [Host]: the jshost package binds it to
// the browser DOM under GOOS=js, and the wsbridge package carries the same
// messages over a WebSocket.
//
// # Embedded checkout
//
// [New] prepares a [Checkout] for a payment or payout intent. [Checkout.Render]
// mounts the hosted UI in an iframe and completion events reach the
// callbacks configured with [WithOnComplete], [WithOnFail] and
// [WithOnDimensionsChange]. Calls such as [Checkout.SetLocale] wait until the
// frame has announced itself with the "sdk:init" handshake.
//
// # Headless
//
// [NewHeadless] mounts a hidden bridge frame instead, and the host drives the
// intent with [Headless.Request] calls. Each call is correlated with its
// response by API name and a requestId; see the rpc package.
//
// # Card fields
//
// [NewFields] mounts standalone card fields that share one message
// subscription. [Fields.Submit] vaults the card once every field in
// [RequiredFields] is mounted.
//
// # Popup and redirect
//
// [OpenPopup] and [Redirect] show the checkout outside an iframe and return an
// [ExternalFlow] that settles on the first completion message.
package checkout
