package provider

import "github.com/greenguard/greenguard/internal/cache"

// Source records where a reading came from.
type Source string

const (
	// SourceLive means the reading was fetched from the provider for this request.
	SourceLive Source = "live"
	// SourceCache means the reading was served from a fresh cache entry.
	SourceCache Source = "cache"
	// SourceStale means the provider failed and an expired cache entry was served.
	SourceStale Source = "stale"
	// SourceFallback means a synthetic reading was substituted.
	SourceFallback Source = "fallback"
)

// SourceFor maps a cache lookup result to the reading's provenance.
func SourceFor(result cache.Result) Source {
	switch result {
	case cache.ResultHit:
		return SourceCache
	case cache.ResultStale:
		return SourceStale
	default:
		return SourceLive
	}
}
