package rudp

import (
	"context"

	"github.com/datawire/dlib/dlog"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/relaynet/rudp/pkg/netio"
	"github.com/relaynet/rudp/pkg/wire"
)

// closeAndWrap closes ep and folds any close error in alongside cause,
// since a failed handshake leaves the socket needing cleanup and the
// caller otherwise only learns whichever error strikes it blind.
func closeAndWrap(ep *netio.Endpoint, cause error) error {
	if cerr := ep.Close(); cerr != nil {
		return multierror.Append(cause, cerr)
	}
	return cause
}

// Listen binds port, waits for a single inbound SYN, replies SYN_ACK, and
// returns a Channel of the requested variant. The handshake is not
// retried: a malformed or missing SYN is a fatal setup error, as is a
// send failure replying to it.
func Listen(ctx context.Context, port int, variant Variant) (Channel, error) {
	ep, err := netio.Listen(port)
	if err != nil {
		return nil, errors.Wrap(err, "listen")
	}
	id := uuid.NewString()[:8]
	ctx = dlog.WithField(ctx, "conn", id)
	ctx = dlog.WithField(ctx, "variant", variant.String())

	dlog.Debugf(ctx, "awaiting SYN")
	pkt, ok := ep.Recv(ctx)
	if !ok || pkt.Type != wire.TypeSyn {
		return nil, closeAndWrap(ep, errors.New("handshake failed: did not receive SYN"))
	}

	if !ep.Send(ctx, wire.TypeSynAck, 0, nil) {
		return nil, closeAndWrap(ep, errors.New("handshake failed: could not send SYN_ACK"))
	}
	dlog.Debugf(ctx, "connection established (server)")

	return newChannel(ctx, ep, variant, id)
}

// Connect opens a socket to ip:port, sends SYN, waits for SYN_ACK, and
// returns a Channel of the requested variant. As with Listen, the
// handshake is not retried.
func Connect(ctx context.Context, ip string, port int, variant Variant) (Channel, error) {
	ep, err := netio.Dial(ip, port)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}
	id := uuid.NewString()[:8]
	ctx = dlog.WithField(ctx, "conn", id)
	ctx = dlog.WithField(ctx, "variant", variant.String())

	if !ep.Send(ctx, wire.TypeSyn, 0, nil) {
		return nil, closeAndWrap(ep, errors.New("handshake failed: could not send SYN"))
	}

	dlog.Debugf(ctx, "awaiting SYN_ACK")
	pkt, ok := ep.Recv(ctx)
	if !ok || pkt.Type != wire.TypeSynAck {
		return nil, closeAndWrap(ep, errors.New("handshake failed: did not receive SYN_ACK"))
	}
	dlog.Debugf(ctx, "connection established (client)")

	return newChannel(ctx, ep, variant, id)
}

func newChannel(ctx context.Context, ep *netio.Endpoint, variant Variant, id string) (Channel, error) {
	switch variant {
	case StopWait:
		return newStopWaitChannel(ep, id), nil
	case GBN:
		return newGBNChannel(ep, id), nil
	case RENO:
		return newRenoChannel(ep, id), nil
	case SR:
		return newSRChannel(ep, id), nil
	default:
		return nil, closeAndWrap(ep, errors.Errorf("unknown variant %v", variant))
	}
}

// sendFin transmits a FIN and awaits the peer's FIN_ACK. Like the
// handshake, teardown is not retried: a lost FIN or FIN_ACK fails the
// transfer rather than looping forever.
func sendFin(ctx context.Context, ep *netio.Endpoint) bool {
	dlog.Debugf(ctx, "sending FIN")
	if !ep.Send(ctx, wire.TypeFin, 0, nil) {
		dlog.Errorf(ctx, "failed to send FIN")
		return false
	}
	pkt, ok := ep.Recv(ctx)
	if !ok || pkt.Type != wire.TypeFinAck {
		dlog.Errorf(ctx, "failed to receive FIN_ACK")
		return false
	}
	return true
}

// recvFinAndAck replies FIN_ACK to a FIN the caller has already matched.
func recvFinAndAck(ctx context.Context, ep *netio.Endpoint) {
	dlog.Debugf(ctx, "received FIN, sending FIN_ACK")
	ep.Send(ctx, wire.TypeFinAck, 0, nil)
}
