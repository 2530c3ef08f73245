// Package gattc provides the client side of Bluetooth Low Energy GATT.
//
// A Client runs Attribute Protocol transactions over a Transport, one
// request at a time: requests are queued in order and each is sent once
// the previous one has been answered. Notifications and indications are
// delivered to subscribers; indications are confirmed automatically.
//
// A Peripheral wraps a Client and maintains the attribute tree of a
// remote device. Services, characteristics and descriptors are
// discovered on demand or all at once with DiscoverProfile, and can be
// read, written and subscribed to. Results are reported through the
// handlers registered with Handle.
//
// A Central keeps one Peripheral per device address and merges the
// advertising reports of an external scanner into them.
//
// USAGE
//
// Clients and peripherals are not safe for concurrent use. They are
// driven by a single goroutine, either with Serve or by calling Pump
// from an existing event loop. Handlers run on that goroutine. Other
// goroutines hand work to it with Post.
//
//     p := gattc.NewPeripheral(addr, linux.NewSocket(nil))
//     p.Handle(
//         gattc.PeripheralConnected(func(p *gattc.Peripheral) { p.DiscoverProfile() }),
//         gattc.ProfileDiscovered(func(p *gattc.Peripheral) {
//             for _, s := range p.Services() {
//                 fmt.Println(s.UUID())
//             }
//         }),
//     )
//     p.Connect()
//     p.Serve(ctx)
//
// See the explorer example for a complete program.
//
// SETUP
//
// The linux package provides a Transport over BlueZ L2CAP sockets. It
// requires a kernel with LE support and CAP_NET_RAW, or root, for
// connections on the ATT channel.
package gattc
