package cache

import "errors"

// ErrArtifactTooLarge describes a single artifact exceeding the per-entry
// byte cap. ArtifactCache.Put does not return it; Put reports this case as
// PutResult.Reason "entry_too_large".
var ErrArtifactTooLarge = errors.New("cache: artifact exceeds per-entry size cap")

// ErrArtifactCapExceeded describes an admission that would push the
// aggregate artifact cache past its byte budget. ArtifactCache.Put does not
// return it; Put reports this case as PutResult.Reason
// "aggregate_cap_exceeded".
var ErrArtifactCapExceeded = errors.New("cache: artifact cache aggregate cap exceeded")
