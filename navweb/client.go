// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.4
//

package navweb

import (
	"github.com/gorilla/websocket"
)

// client is one websocket viewer of the room
type client struct {
	socket *websocket.Conn
	send   chan []byte
	room   *Room
}

// read drains (and ignores) client messages until the socket closes, so
// the connection teardown is noticed
func (c *client) read() {
	defer c.socket.Close()
	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			return
		}
	}
}

// write pushes queued frames to the client
func (c *client) write() {
	defer c.socket.Close()
	for msg := range c.send {
		if err := c.socket.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
