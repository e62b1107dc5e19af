/*
Package executor handles single HTTP request execution.

# Overview

The executor package provides:
  - A pooled HTTP client builder shared by every request of a run
  - Optional cookie jar so a client can carry a session
  - TLS/mTLS configuration
  - Execute, which turns one request into a RequestResult

# Error Model

Execute only returns an error when the request itself is malformed.
Network failures, timeouts and cancellations are part of the result:
RequestResult.Error is set and Status is 0. Callers print those the
same way as any other response.
*/
package executor
