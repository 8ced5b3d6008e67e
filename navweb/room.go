// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.4
//

package navweb

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// Room fans incoming frames out to every connected websocket client
type Room struct {
	// forward holds frames to be forwarded to all clients
	forward chan []byte
	// join is a channel for clients wishing to join the room
	join chan *client
	// leave is a channel for clients wishing to leave the room
	leave chan *client
	// clients holds all current clients in this room
	clients map[*client]bool
}

// NewRoom makes a new room that is ready to go
func NewRoom() *Room {
	return &Room{
		forward: make(chan []byte, messageBufferSize),
		join:    make(chan *client),
		leave:   make(chan *client),
		clients: make(map[*client]bool),
	}
}

// Run owns the client set; call it in its own goroutine
func (r *Room) Run() {
	for {
		select {
		case client := <-r.join:
			r.clients[client] = true
			log.Println("navweb: new client joined")
		case client := <-r.leave:
			delete(r.clients, client)
			close(client.send)
			log.Println("navweb: client left")
		case msg := <-r.forward:
			for client := range r.clients {
				select {
				case client.send <- msg:
				default:
					// client too slow, drop the frame
				}
			}
		}
	}
}

// Broadcast queues one solution frame for all clients. Frames are dropped
// when no client keeps up; the stream is a live view, not a log.
func (r *Room) Broadcast(d *NavData) {
	msg, err := json.Marshal(d)
	if err != nil {
		log.Println("navweb: marshal failed:", err)
		return
	}
	select {
	case r.forward <- msg:
	default:
	}
}

const (
	socketBufferSize  = 1024
	messageBufferSize = 16
)

var upgrader = &websocket.Upgrader{ReadBufferSize: socketBufferSize, WriteBufferSize: socketBufferSize}

func (r *Room) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	socket, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Println("navweb: upgrade failed:", err)
		return
	}
	client := &client{
		socket: socket,
		send:   make(chan []byte, messageBufferSize),
		room:   r,
	}
	r.join <- client
	defer func() { r.leave <- client }()
	go client.write()
	client.read()
}
