// Package auth guards the presence server's write and health surfaces with a
// shared API key.
//
// A Policy is built from the server's auth config. Middleware applies it to
// HTTP handlers (401 with a JSON error body); UnaryInterceptor applies it to
// gRPC calls (codes.Unauthenticated). A policy whose mode is not "apikey", or
// whose key is empty, admits every request.
package auth
