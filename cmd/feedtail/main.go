// Command feedtail connects to the realtime post feed and prints each event.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
)

type event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func main() {
	feedURL := flag.String("url", "ws://localhost:8375/api/ws", "Feed websocket URL")
	token := flag.String("token", "", "Optional bearer token")
	flag.Parse()

	header := http.Header{}
	if *token != "" {
		header.Set("Authorization", "Bearer "+*token)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(*feedURL, header)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *feedURL, err)
	}
	defer func() { _ = conn.Close() }()
	log.Printf("Connected to %s", *feedURL)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("Read error: %v", err)
				}
				return
			}
			var ev event
			if err := json.Unmarshal(data, &ev); err != nil {
				log.Printf("raw: %s", data)
				continue
			}
			log.Printf("%-22s %s", ev.Type, ev.Payload)
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		<-done
	}
}
