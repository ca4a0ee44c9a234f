// Package risk holds the signals the login flow scores before issuing tokens:
// fingerprint hashing, IP reputation, device recognition, working hours,
// password age and last-login staleness, and locale mismatches.
//
// Everything except the reputation lookups is a pure function of its inputs
// so the login flow can be tested with a fixed clock.
package risk
