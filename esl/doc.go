// Package esl provides a Go client for the FreeSWITCH event socket, the
// text-based command and event protocol spoken on the switch's control port.
//
// # Protocol Overview
//
// Every request and response is one frame terminated by an empty line.
//
//	Banner (Server -> Client):  Content-Type: auth/request\n\n
//	Auth request:               auth <password>\n\n
//	Auth success:               Content-Type: command/reply\nReply-Text: +OK accepted\n\n
//	Subscribe:                  event json all\n\n
//	                            event json CHANNEL_CREATE HEARTBEAT\n\n
//	Generic command:            api status\n\n
//	JSON event:                 {"Event-Name":"HEARTBEAT", ...}\n\n
//
// Frames that carry a Content-Length header are followed by exactly that many
// body bytes (api responses and text/event-json events).
//
// # Basic Usage
//
//	sess := esl.New("127.0.0.1", esl.DefaultPort,
//	    esl.WithPassword("ClueCon"),
//	    esl.WithEvents("HEARTBEAT", "CHANNEL_ANSWER"),
//	)
//	if err := sess.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close()
//
//	sess.Registry().Register("HEARTBEAT", func(ev esl.Event) {
//	    fmt.Println("uptime", ev.Header("Up-Time"))
//	})
//
//	stream, err := sess.Stream(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for ev := range stream.Events() {
//	    fmt.Println(ev.Name())
//	}
//	if err := stream.Err(); err != nil {
//	    log.Println("stream ended:", err)
//	}
//
// # Thread Safety
//
// A Session has one reader: the handshake caller until a Stream starts, then
// the stream's goroutine. Writes are serialized, so SendCommand and API may be
// called from any goroutine while a stream runs.
package esl
