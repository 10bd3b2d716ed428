// Package msgs provides L1 protocol support and the generic message schemas.
package msgs

// L1 protocol is communicated between L1 controller and L2 brain,
// and uses hardware-agnostic primitives. Device specific messages are
// defined along with their controllers and registered with RegisterTypes.
//
// Each message is wrapped in a Typed envelope encoded with protobuf.
//
// Producer: L1 controller
// Consumer: L2 brain
