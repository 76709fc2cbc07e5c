// Package auth provides the session and access-control kit for the library
// console gateway: token inspection, durable session state shared across
// gateway instances, route guarding, and the login/signup flow controllers.
//
// Session state:
//   - Store owns the credential pair and identity as a single tuple; both
//     halves are always present or always absent. State is persisted to a
//     storage.Backend (redis, sqlite, or in-memory) and re-read whenever
//     another instance mutates it, with last-write-observed-wins semantics.
//   - Manager is the read/write facade the rest of the gateway talks to:
//     Login, Logout, Snapshot, OnChange. It performs no network I/O.
//
// Access control:
//   - Codec decodes bearer tokens without verifying signatures. The client
//     side is advisory only; the remote API re-validates every request.
//     Decoding failure is always treated as expired.
//   - Guard runs the per-navigation state machine (checking, authenticated,
//     unauthenticated) and decides redirects. RouteGuard adapts it to fiber,
//     preserving the originally requested location across a login round trip.
//
// Flows:
//   - AuthController hosts the login and signup handlers. Input is validated
//     locally before any network call; remote failures surface as a single
//     generic message. The remote endpoint itself is behind the AuthAPI
//     interface, implemented by AuthClient.
package auth
