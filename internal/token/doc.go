// Package token manages the lifetime of a single bearer token for the AMP API.
//
// # Overview
//
// A Manager owns one token slot. Callers ask it for a token with GetToken; the manager
// returns the cached value while it is comfortably valid and otherwise obtains or refreshes
// it against the upstream. At most one obtain or refresh is in flight per Manager no matter
// how many goroutines are asking.
//
// # Lifecycle
//
//	Absent -> Obtaining -> Valid -> ExpiringSoon -> Refreshing|Obtaining -> Valid ...
//
// Expiry is evaluated lazily from the stored timestamps. A token is expiring soon once
// now >= ExpiresAt - window (5 minutes by default) and expired once now >= ExpiresAt.
// Expiring tokens are refreshed; if the refresh fails for any reason the manager falls back
// to a fresh obtain with the configured credentials. Expired tokens are never refreshed.
//
// # Usage
//
//	executor := retry.NewExecutor()
//	auth, err := token.NewHTTPAuthenticator("https://amp-test.blockstream.com/api", executor, retry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//
//	manager := token.NewManager(auth, credentials.NewEnvSource())
//	secret, err := manager.GetToken(ctx)
//
// Requests to business endpoints carry the token as "Authorization: token <secret>".
// When such a request is rejected with 401 the caller should use ForceRefresh and retry once.
package token
