// Package license decides whether this installation is currently licensed.
//
// The Gate wraps a Central Hub license check with a single cached entry.
// A fresh entry (younger than the TTL, five minutes by default) is served
// without a remote call. Once the entry is stale the next Evaluate performs
// one remote check; concurrent callers share it.
//
// When that check fails for a transient reason (Central Hub unreachable,
// timing out or answering with a server error) and an earlier answer exists,
// the earlier validity is kept and the message notes that the cached status
// is in use. The earlier entry's timestamp is left alone, so the next request
// tries Central Hub again. Without an earlier answer the failure is returned
// and the request is denied.
//
// WithResult and ResultFromContext carry the answer through a request so
// that pages can show license details without another lookup.
package license
