// Package core holds the authorization-code flow: redirect parsing, the two
// credential exchanges, persisted credential records, expiry and Hawk request
// signing. Transport and storage adapters depend on this package; core must
// not depend on them.
package core
