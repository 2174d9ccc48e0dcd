// Package ratelimit spaces out requests to the photo site.
//
// A TokenBucket grants a fixed number of requests per period and refills
// completely when the period has passed. Wait blocks until a token is free
// or the context ends, so a cancelled backup never sits in the limiter.
// Unlimited is used when no rate is configured.
//
// Usage:
//
//	limiter := ratelimit.New(cfg.RateLimit.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//		return err
//	}
package ratelimit
