// Package searchmeta encodes and decodes the per-item audit trail stored with
// every search history run.
//
// The trail is a JSON array of loosely typed objects written by the search
// executor. Parse never fails hard: absent, malformed, and wrongly shaped
// blobs all come back as "no entries" with a Reason describing why. Entry
// keeps keys it does not understand so that Serialize writes them back
// untouched.
package searchmeta
