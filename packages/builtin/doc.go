// Package builtin provides the $-prefixed functions usable inside {{ }}
// templates and assertion paths.
//
// Arguments are separated by spaces:
//   - $randomInt min max: random integer in [min, max], as a decimal string
//   - $uuid: random UUID v4
//   - $timestamp, $timestampMs: current Unix time in seconds or milliseconds
//   - $now: current UTC time in RFC 3339
//   - $date [layout]: current UTC date, Go layout, default 2006-01-02
//   - $randomString [n]: n random alphanumerics, default 16
//   - $randomEmail: random address under example.com
//   - $base64 s, $urlEncode s, $md5 s, $sha256 s
package builtin
