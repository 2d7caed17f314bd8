// Package core assembles the state-synchronization stack into the single
// handle consumers hold: the hub connection, the mirrored registries, and
// the domain services over them.
//
// A typical consumer:
//
//	c := core.New(core.Options{Config: cfg, Logger: log})
//	defer c.Disconnect()
//
//	off := c.OnMessage(func(entities map[string]registry.Entity) {
//		// re-render
//	})
//	defer off()
//
//	if err := c.Connect(); err != nil {
//		// first-attempt diagnostics arrive via OnConnectionError
//	}
package core
