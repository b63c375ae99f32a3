package telephony

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
	"github.com/icholy/digest"

	"gatebot/internal/config"
)

// sipDialer is the native trunk path: a registered UA that originates one
// INVITE per gate call. Registration happens once at startup; a failure there
// downgrades the whole adapter to the HTTP fallback.
type sipDialer struct {
	ua     *sipgo.UserAgent
	client *sipgo.Client
	cfg    config.TrunkProviderConfig
	log    *slog.Logger
}

const registerExpiry = 3600

func newSIPDialer(ctx context.Context, cfg config.TrunkProviderConfig, log *slog.Logger) (*sipDialer, error) {
	ua, err := sipgo.NewUA(sipgo.WithUserAgent("gatebot"))
	if err != nil {
		return nil, err
	}
	client, err := sipgo.NewClient(ua)
	if err != nil {
		ua.Close()
		return nil, err
	}

	d := &sipDialer{ua: ua, client: client, cfg: cfg, log: log}
	regCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()
	if err := d.register(regCtx); err != nil {
		ua.Close()
		return nil, fmt.Errorf("register: %w", err)
	}
	return d, nil
}

func (d *sipDialer) trunkURI(user string) sip.Uri {
	return sip.Uri{User: user, Host: d.cfg.Host, Port: d.cfg.SIPPort}
}

// register performs a digest-authenticated REGISTER against the trunk.
func (d *sipDialer) register(ctx context.Context) error {
	recipient := d.trunkURI(d.cfg.Extension)
	req := sip.NewRequest(sip.REGISTER, recipient)
	req.AppendHeader(sip.NewHeader("Expires", fmt.Sprintf("%d", registerExpiry)))

	_, res, err := d.sendWithAuth(ctx, req, recipient)
	if err != nil {
		return err
	}
	if res.StatusCode != sip.StatusOK {
		return fmt.Errorf("trunk answered %d %s", res.StatusCode, res.Reason)
	}
	return nil
}

// Dial originates the gate call. Call setup completing without error is the
// success criterion; media is between the trunk and the gate device.
func (d *sipDialer) Dial(ctx context.Context, req CallRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	recipient := d.trunkURI(req.CalleeNumber)
	invite := sip.NewRequest(sip.INVITE, recipient)
	invite.AppendHeader(sip.NewHeader("Content-Type", "application/sdp"))
	invite.SetBody(minimalSDPOffer())

	sent, res, err := d.sendWithAuth(ctx, invite, recipient)
	if err != nil {
		return "", err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("trunk answered %d %s", res.StatusCode, res.Reason)
	}

	// Complete the handshake. The far end drops the call once the gate relay
	// fires, so no BYE is sent from this side.
	if err := d.client.WriteRequest(buildACK(sent, res)); err != nil {
		d.log.Warn("ack write failed", "err", err)
	}

	callID := ""
	if cid := sent.CallID(); cid != nil {
		callID = cid.Value()
	}
	return callID, nil
}

// sendWithAuth sends the request and, on a 401/407 challenge, retries once
// with a digest Authorization header. It returns the request that produced
// the final response so callers can ACK against the right dialog.
func (d *sipDialer) sendWithAuth(ctx context.Context, req *sip.Request, recipient sip.Uri) (*sip.Request, *sip.Response, error) {
	tx, err := d.client.TransactionRequest(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Terminate()

	res, err := d.awaitFinal(ctx, tx)
	if err != nil {
		return nil, nil, err
	}
	if res.StatusCode != sip.StatusUnauthorized && res.StatusCode != sip.StatusProxyAuthRequired {
		return req, res, nil
	}

	challengeHeader := "WWW-Authenticate"
	authHeader := "Authorization"
	if res.StatusCode == sip.StatusProxyAuthRequired {
		challengeHeader = "Proxy-Authenticate"
		authHeader = "Proxy-Authorization"
	}
	h := res.GetHeader(challengeHeader)
	if h == nil {
		return nil, nil, errors.New("challenge response without authenticate header")
	}
	chal, err := digest.ParseChallenge(h.Value())
	if err != nil {
		return nil, nil, fmt.Errorf("parse challenge: %w", err)
	}
	cred, err := digest.Digest(chal, digest.Options{
		Method:   req.Method.String(),
		URI:      recipient.String(),
		Username: d.cfg.Username,
		Password: d.cfg.Password,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("compute digest: %w", err)
	}

	// Rebuild rather than mutate: the original request belongs to the
	// terminated transaction.
	retry := sip.NewRequest(req.Method, recipient)
	if ct := req.GetHeader("Content-Type"); ct != nil {
		retry.AppendHeader(sip.NewHeader("Content-Type", ct.Value()))
	}
	if exp := req.GetHeader("Expires"); exp != nil {
		retry.AppendHeader(sip.NewHeader("Expires", exp.Value()))
	}
	if body := req.Body(); len(body) > 0 {
		retry.SetBody(body)
	}
	retry.AppendHeader(sip.NewHeader(authHeader, cred.String()))
	if cseq := retry.CSeq(); cseq != nil {
		cseq.SeqNo++
	}

	retryTx, err := d.client.TransactionRequest(ctx, retry)
	if err != nil {
		return nil, nil, err
	}
	defer retryTx.Terminate()
	final, err := d.awaitFinal(ctx, retryTx)
	if err != nil {
		return nil, nil, err
	}
	return retry, final, nil
}

// buildACK constructs the ACK for a 2xx INVITE response. Per RFC 3261
// §13.2.2.4 the ACK for a 2xx comes from the UAC core, not the transaction
// layer: same dialog identifiers as the INVITE, the To tag from the
// response, the CSeq number reused with method ACK.
func buildACK(invite *sip.Request, res *sip.Response) *sip.Request {
	recipient := &invite.Recipient
	if contact := res.Contact(); contact != nil {
		recipient = &contact.Address
	}

	ack := sip.NewRequest(sip.ACK, *recipient.Clone())
	ack.SipVersion = invite.SipVersion

	if len(invite.GetHeaders("Route")) > 0 {
		sip.CopyHeaders("Route", invite, ack)
	}
	if h := invite.From(); h != nil {
		ack.AppendHeader(sip.HeaderClone(h))
	}
	if h := res.To(); h != nil {
		ack.AppendHeader(sip.HeaderClone(h))
	}
	if h := invite.CallID(); h != nil {
		ack.AppendHeader(sip.HeaderClone(h))
	}
	if h := invite.CSeq(); h != nil {
		ack.AppendHeader(sip.HeaderClone(h))
	}
	if cseq := ack.CSeq(); cseq != nil {
		cseq.MethodName = sip.ACK
	}

	maxFwd := sip.MaxForwardsHeader(70)
	ack.AppendHeader(&maxFwd)

	ack.SetTransport(invite.Transport())
	ack.SetSource(invite.Source())
	return ack
}

func (d *sipDialer) awaitFinal(ctx context.Context, tx sip.ClientTransaction) (*sip.Response, error) {
	for {
		select {
		case res, ok := <-tx.Responses():
			if !ok {
				return nil, errors.New("transaction terminated without final response")
			}
			if res.IsProvisional() {
				continue
			}
			return res, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(RequestTimeout):
			return nil, errors.New("timed out waiting for final response")
		}
	}
}

// minimalSDPOffer is enough for trunks that only need call setup to trigger
// the gate; no media flows back to this process.
func minimalSDPOffer() []byte {
	return []byte("v=0\r\n" +
		"o=gatebot 0 0 IN IP4 0.0.0.0\r\n" +
		"s=gate\r\n" +
		"c=IN IP4 0.0.0.0\r\n" +
		"t=0 0\r\n" +
		"m=audio 49170 RTP/AVP 0 8\r\n" +
		"a=sendrecv\r\n")
}
