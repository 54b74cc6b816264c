package secret

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives the cache-key-safe fingerprint of a secret as
// HMAC_SHA256(salt, resolver_id + ":" + source), never the resolved
// plaintext. The resolver must report
// SupportsDeterministicFingerprint() == true before a secret is eligible
// to participate in a cache key at all; callers are expected to check that
// before calling Fingerprint.
func Fingerprint(salt []byte, resolverID, source string) string {
	mac := hmac.New(sha256.New, salt)
	mac.Write([]byte(resolverID))
	mac.Write([]byte(":"))
	mac.Write([]byte(source))
	return hex.EncodeToString(mac.Sum(nil))
}

// FingerprintWithRotation computes the current fingerprint under salt, and
// additionally the fingerprint under prevSalt when prevSalt is non-empty.
// It only computes the two values. No cache lookup in this module calls
// it, so cache keys use the current salt alone and an entry recorded under
// prevSalt is not found once the salt changes.
func FingerprintWithRotation(salt, prevSalt []byte, resolverID, source string) (current string, previous string) {
	current = Fingerprint(salt, resolverID, source)
	if len(prevSalt) == 0 {
		return current, ""
	}
	previous = Fingerprint(prevSalt, resolverID, source)
	return current, previous
}
