// Package token implements the signed action tokens embedded in UI
// component ids. Tokens are stateless capabilities binding one ticket and
// one action to a tenant; there is no server-side session store and no
// revocation. The tenant id is not embedded in the emitted token — the
// verifier already knows which tenant the interaction belongs to and must
// supply it again.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Known wire formats. Version is always the first colon-delimited field;
// each version has its own field layout and signature length.
//
//	current: "1:" + ticketId + ":" + action + ":" + nonce8 + ":" + sig10hex
//	legacy:  "v1:" + tenantId + ":" + ticketId + ":" + action + ":" + nonce + ":" + sig16hex
const (
	versionCurrent = "1"
	versionLegacy  = "v1"

	currentSigLen = 10
	legacySigLen  = 16
)

// Payload is the structurally parsed content of a token. Decode does not
// authenticate; callers must Verify before trusting any field.
type Payload struct {
	Version  string
	TicketID string
	Action   string
	Nonce    string
}

// Codec signs and verifies action tokens. Pure functions over the
// configured secrets; safe for concurrent use.
type Codec struct {
	secret       []byte
	legacySecret []byte
	now          func() time.Time
}

// NewCodec builds a codec. legacySecret may be empty when no previously
// issued legacy tokens need to keep verifying.
func NewCodec(secret, legacySecret string) *Codec {
	return &Codec{
		secret:       []byte(secret),
		legacySecret: []byte(legacySecret),
		now:          time.Now,
	}
}

// Issue produces a current-format token for the (ticket, action) tuple.
// The nonce is derived from the millisecond clock, so replay within the
// same millisecond window yields an identical token; it carries freshness
// information only and has no enforced expiry.
func (c *Codec) Issue(tenantID, ticketID, action string) string {
	nonce := c.nonce()
	sig := signHex(c.secret, versionCurrent+":"+tenantID+":"+ticketID+":"+action+":"+nonce, currentSigLen)
	return versionCurrent + ":" + ticketID + ":" + action + ":" + nonce + ":" + sig
}

// Verify recomputes the signature for the externally supplied tenant and
// reports whether the token authenticates. Legacy tokens fall back to the
// secondary secret.
func (c *Codec) Verify(tenantID, tok string) bool {
	parts := strings.Split(tok, ":")

	switch {
	case len(parts) == 5 && parts[0] == versionCurrent:
		ticketID, action, nonce, sig := parts[1], parts[2], parts[3], parts[4]
		payload := versionCurrent + ":" + tenantID + ":" + ticketID + ":" + action + ":" + nonce
		return sigEqual(sig, signHex(c.secret, payload, currentSigLen))

	case len(parts) == 6 && parts[0] == versionLegacy:
		embeddedTenant, ticketID, action, nonce, sig := parts[1], parts[2], parts[3], parts[4], parts[5]
		if embeddedTenant != tenantID {
			return false
		}
		payload := versionLegacy + ":" + tenantID + ":" + ticketID + ":" + action + ":" + nonce
		if sigEqual(sig, signHex(c.secret, payload, legacySigLen)) {
			return true
		}
		if len(c.legacySecret) == 0 {
			return false
		}
		fallback := signHex(c.legacySecret, payload, legacySigLen)
		if sigEqual(sig, fallback) {
			return true
		}
		// Some legacy issuers truncated to the current signature length.
		return sigEqual(sig, fallback[:currentSigLen])
	}

	return false
}

// Decode structurally parses a token of any known format. The boolean is
// false for unrecognized shapes.
func (c *Codec) Decode(tok string) (Payload, bool) {
	parts := strings.Split(tok, ":")

	if len(parts) == 5 && parts[0] == versionCurrent {
		return Payload{
			Version:  parts[0],
			TicketID: parts[1],
			Action:   parts[2],
			Nonce:    parts[3],
		}, true
	}
	if len(parts) == 6 && parts[0] == versionLegacy {
		return Payload{
			Version:  parts[0],
			TicketID: parts[2],
			Action:   parts[3],
			Nonce:    parts[4],
		}, true
	}
	return Payload{}, false
}

// nonce returns the last 8 decimal digits of the unix-millisecond clock.
func (c *Codec) nonce() string {
	ms := strconv.FormatInt(c.now().UnixMilli(), 10)
	if len(ms) > 8 {
		ms = ms[len(ms)-8:]
	}
	return ms
}

func signHex(secret []byte, payload string, n int) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	digest := hex.EncodeToString(mac.Sum(nil))
	if n < len(digest) {
		digest = digest[:n]
	}
	return digest
}

func sigEqual(got, want string) bool {
	return hmac.Equal([]byte(got), []byte(want))
}
