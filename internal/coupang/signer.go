// Package coupang talks to the Coupang Partners product search API. It signs
// each request with the CEA-HMAC-SHA256 scheme and relays the response body
// untouched.
package coupang

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// SearchPath is the upstream endpoint path; it is part of the signed message.
	SearchPath = "/v2/providers/affiliate_open_api/apis/openapi/v1/products/search"
	// SearchMethod is the HTTP method used for searches; also signed.
	SearchMethod = "POST"
	// SignedHeaders names the headers covered by the signature.
	SignedHeaders = "x-cea-date"
	// DateHeader carries the signing timestamp.
	DateHeader = "X-CEA-Date"

	timestampLayout = "2006-01-02T15:04:05Z"
)

// Credentials are the partner access key and secret key.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// Valid reports whether both keys are set.
func (c Credentials) Valid() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

// Envelope is the per-request signing material. It lives only for the
// duration of one outbound call.
type Envelope struct {
	Timestamp     string
	Method        string
	Path          string
	Signature     string
	Authorization string
}

// Timestamp formats t in UTC with second precision and a literal Z.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Signature returns the lowercase hex HMAC-SHA256 of timestamp+method+path.
func Signature(secretKey, timestamp, method, path string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(timestamp + method + path))
	return hex.EncodeToString(mac.Sum(nil))
}

// Sign builds the envelope for a search issued at now.
func Sign(creds Credentials, now time.Time) Envelope {
	ts := Timestamp(now)
	sig := Signature(creds.SecretKey, ts, SearchMethod, SearchPath)
	return Envelope{
		Timestamp: ts,
		Method:    SearchMethod,
		Path:      SearchPath,
		Signature: sig,
		Authorization: fmt.Sprintf("CEA-HMAC-SHA256 AccessKey=%s, SignedHeaders=%s, Signature=%s",
			creds.AccessKey, SignedHeaders, sig),
	}
}
