package wss

// Subscriber is the business-logic side of the transport boundary.
// internal/hub implements this to receive raw frames from connected
// players without pkg/wss knowing anything about rooms or game state.
type Subscriber interface {
	// OnConnect fires once the connection is registered with the hub and
	// is safe to Send to.
	OnConnect(conn *Connection)

	// OnMessage fires for every inbound text/binary frame, in the order
	// the connection's readPump received them.
	OnMessage(conn *Connection, data []byte)

	// OnDisconnect fires exactly once, after the connection's read pump has
	// stopped and it has been removed from the hub; its send channel is
	// closed just before, which ends the write pump.
	OnDisconnect(conn *Connection)
}
