// Package retry runs operations with exponential backoff.
//
// The delay doubles per attempt from an initial value, carries jitter
// to spread concurrent retries, and is capped. The caller decides
// which errors are worth another attempt:
//
//	err := retry.Do(ctx, nil, callEndpoint, &retry.Options{
//	    Operation:   "introspection",
//	    ShouldRetry: isTransient,
//	})
package retry
