// Package ws serves a Conduit application over WebSocket connections.
//
// Every text or binary frame a client sends is turned into a GET request
// and answered through the normal pipeline. A frame of the form
// "path:body", where path starts with "/", targets that path; any other
// frame targets the path the connection was opened on. The response body
// is sent back as one frame: a text frame for textual or JSON content and
// for responses without a Content-Type, a binary frame otherwise.
//
//	srv := ws.New(app, ws.WithBroadcaster(broadcast.NewRedis(client), "events"))
//	if err := srv.Listen(":8080"); err != nil {
//	    log.Fatal(err)
//	}
//
// Broadcast sends a frame to every connected client. With a broadcaster
// the message is published first, so every instance subscribed to the
// same channel delivers it to its own clients.
package ws
