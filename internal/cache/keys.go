// Package cache centralises the Redis key layout shared by the API and worker.
package cache

import "strings"

func normalise(part string) string {
	return strings.ToUpper(strings.TrimSpace(part))
}

// KeyPromotions returns the key holding the promotion snapshot of a shop and currency.
func KeyPromotions(shopCode, currency string) string {
	return "promo:" + normalise(shopCode) + ":" + normalise(currency)
}

// KeyCart returns the session key of a cart.
func KeyCart(id string) string {
	return "cart:" + strings.TrimSpace(id)
}

// KeyCartLock returns the single-writer lock key of a cart.
func KeyCartLock(id string) string {
	return "lock:cart:" + strings.TrimSpace(id)
}

// KeyIdempotency returns the key storing the response for an idempotency
// digest.
func KeyIdempotency(digest string) string {
	return "idem:" + digest
}

// KeyRateLimitPrefix is the prefix of rate limiter counters.
const KeyRateLimitPrefix = "ratelimit"
