// Package host drives membrane guests from the host side.
//
// A Membrane owns one instantiated guest module. It verifies the guest's
// export surface (Init), moves byte buffers and strings across linear memory
// through that surface, and serves the guest's log and panic imports. Import
// callbacks reach their Membrane through a weak back-reference, so a dropped
// or closed Membrane turns late guest callbacks into no-ops.
//
// BufferLock and WithBuffer scope a guest buffer to a block of host code and
// guarantee it is freed exactly once.
package host
