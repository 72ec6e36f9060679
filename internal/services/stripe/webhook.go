package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ticketing/internal/status"
)

// SignatureHeader is the header carrying the webhook payload signature.
const SignatureHeader = "Stripe-Signature"

// Hmac256 generates the hex HMAC-SHA256 digest of body under key.
func Hmac256(body, key []byte) string {
	hash := hmac.New(sha256.New, key)
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}

// SignPayload produces a signature header value for payload at ts. The
// signed message is "<unix-ts>.<payload>".
func SignPayload(payload []byte, secret string, ts time.Time) string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	signed := fmt.Sprintf("%s.%s", unix, payload)
	return fmt.Sprintf("t=%s,v1=%s", unix, Hmac256([]byte(signed), []byte(secret)))
}

// ConstructWebhookEvent verifies header against the raw payload bytes and
// parses the event. Verification is computed over the exact bytes received,
// so the payload must not have passed through a JSON re-encode. Any
// verification or parse problem is reported as ErrInvalidSignature; no
// event is returned in that case.
func ConstructWebhookEvent(payload []byte, header, secret string, tolerance time.Duration) (*Event, error) {
	ts, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrInvalidSignature, err)
	}

	if tolerance > 0 && time.Since(time.Unix(ts, 0)) > tolerance {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", status.ErrInvalidSignature)
	}

	signed := fmt.Sprintf("%d.%s", ts, payload)
	expected := Hmac256([]byte(signed), []byte(secret))

	valid := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("%w: no matching v1 signature", status.ErrInvalidSignature)
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %v", status.ErrInvalidSignature, err)
	}
	return &event, nil
}

// parseSignatureHeader splits "t=<unix>,v1=<hex>[,v1=<hex>…]" into the
// timestamp and candidate signatures.
func parseSignatureHeader(header string) (int64, []string, error) {
	if header == "" {
		return 0, nil, fmt.Errorf("missing signature header")
	}

	var ts int64 = -1
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			parsed, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("bad timestamp %q", kv[1])
			}
			ts = parsed
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if ts < 0 {
		return 0, nil, fmt.Errorf("no timestamp in signature header")
	}
	if len(signatures) == 0 {
		return 0, nil, fmt.Errorf("no v1 signature in header")
	}
	return ts, signatures, nil
}
