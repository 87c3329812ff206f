// Package offline keeps an application shell available without a network.
//
// A Controller sits between browsers and the app's origin and does the job a
// service worker would: it pre-caches shell assets into a versioned
// generation (install), garbage-collects superseded generations and claims
// clients (activate), and intercepts GET requests network first, falling
// back to the current generation when the origin cannot be reached.
//
// # Lifecycle
//
//	Idle -> Installing -> Installed -> Activating -> Active
//	                                             \-> Redundant (kill mode)
//
// Start runs install and activate back to back. Until the controller is
// Active every request goes straight to the network.
//
// # Kill switch
//
// With ModeKill the controller skips pre-caching, deletes every generation,
// becomes Redundant and marks every known client for reload. A redundant
// controller never touches the cache again.
//
// # Cacheability
//
// A network response is written to the current generation only when the
// request is a GET that is not excluded, the status is exactly 200, no
// sensitive header is present, and the path has a cacheable extension, is the
// root, or the request is a navigation. Writes happen in the background and
// their failures are logged, never returned.
package offline
