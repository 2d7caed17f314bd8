// Package credstore persists refresh-token credentials in SQLite and
// serves the connection manager's credential contract: Fresh returns a
// non-expired access token, refreshing through an injected exchange
// function when the stored one has aged out. Token freshness is judged by
// the JWT exp claim (parsed unverified; only the hub can check the
// signature), with the stored expiry as fallback.
//
// The browser OAuth flow that obtains the initial token pair lives outside
// this package; Save is called with its result.
package credstore
