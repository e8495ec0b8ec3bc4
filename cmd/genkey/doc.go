// Command genkey produces the bcrypt hash the service expects in
// API_KEY_HASH.
//
// The service stores only the hash; clients send the key itself in the
// X-Api-Key header (or as a Bearer token) and the service compares it with
// bcrypt. An empty API_KEY_HASH leaves the API unauthenticated.
//
// Usage:
//
//	genkey [flags]
//
// Flags:
//
//	-stdin  Read the key from stdin instead of prompting interactively.
//	        Useful for generated keys:
//
//	            openssl rand -hex 32 | genkey -stdin
//
//	-cost   bcrypt cost factor (default 10). Each increment doubles the
//	        hashing time for both this tool and every authenticated request.
//
// Without -stdin the key is read twice with terminal echo disabled, the
// same way resetpw-style tools read passwords.
//
// The hash is written to stdout; everything else goes to stderr, so the
// output can be piped or substituted directly:
//
//	export API_KEY_HASH="$(openssl rand -hex 32 | tee /dev/stderr | genkey -stdin)"
package main
