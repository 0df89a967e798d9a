package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/lisuiheng/fastplayer/protocols/websocket"
)

func main() {
	url := flag.String("url", "ws://127.0.0.1:8765/control", "Control channel URL")
	token := flag.String("token", "", "Access token")
	clientID := flag.String("id", "", "Client id (default random)")
	flag.Parse()

	var cfg websocket.Config
	cfg.Server.URL = *url
	cfg.Server.ProtocolVersion = 1
	cfg.Auth.AccessToken = *token
	cfg.Device.ClientID = *clientID
	if cfg.Device.ClientID == "" {
		cfg.Device.ClientID = uuid.NewString()
	}

	sess := newSession(cfg)
	p := tea.NewProgram(newModel(sess, *url), tea.WithAltScreen())

	go sess.run(p.Send)
	defer sess.close()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
