// Package auth resolves bearer credentials from incoming connection requests
// and validates them against an external token authority.
//
// Credentials are resolved in fixed priority order: the access_token query
// parameter, the websocket subprotocol header, then a standard Authorization
// bearer header. Empty values at any step are treated as absent. Validation
// happens exactly once per connection attempt; there is no retry and no
// guest fallback.
package auth
