// Package arr talks to Sonarr and Radarr over their v3 REST API.
//
// A session is opened per reconciliation with Open, which probes the
// instance so dead hosts, bad TLS, and rejected keys fail at acquisition
// rather than on the first item. Every request passes through a
// golang.org/x/time/rate limiter sized to the instance's configured
// requests per second and is retried on transient failures with exponential
// backoff. Failures that mean the whole channel is gone wrap ErrChannel.
package arr
