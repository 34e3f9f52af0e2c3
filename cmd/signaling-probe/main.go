// Operator tool: connects the signaling channel for an extension and
// prints everything that happens on it.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	softphone "github.com/asterlink/softphone-go-sdk"
	"github.com/asterlink/softphone-go-sdk/phonesdk"
	"github.com/asterlink/softphone-go-sdk/signaling"
)

func main() {
	_ = godotenv.Load()

	token := os.Getenv("SOFTPHONE_TOKEN")
	if token == "" {
		fmt.Println("SOFTPHONE_TOKEN env var required")
		os.Exit(1)
	}

	config := phonesdk.DefaultConfig()
	if baseURL := os.Getenv("SOFTPHONE_BASE_URL"); baseURL != "" {
		config.BaseURL = baseURL
	}

	fmt.Println("[1/3] Creating softphone client...")
	client, err := softphone.NewClient(token, config)
	if err != nil {
		fmt.Printf("ERROR creating client: %v\n", err)
		os.Exit(1)
	}

	info, err := client.Core().TokenInfo()
	if err != nil {
		fmt.Printf("ERROR inspecting token: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  Extension: %s\n", info.Extension)
	if !info.ExpiresAt.IsZero() {
		fmt.Printf("  Token expires: %s\n", info.ExpiresAt.Format(time.RFC3339))
	}

	fmt.Println("[2/3] Resolving signaling endpoint...")
	if wsURL := os.Getenv("SOFTPHONE_WS_URL"); wsURL != "" {
		client.Signaling().SetCustomWebSocketURL(wsURL)
		fmt.Printf("  Using fixed URL: %s\n", wsURL)
	} else {
		_ = client.Discovery().Refresh()
		resolved, _ := client.Discovery().GetWebSocketURL()
		fmt.Printf("  Resolved: %s\n", resolved)
	}

	msgCount := 0
	client.Signaling().OnMessage(func(msg *signaling.Message) {
		msgCount++
		fmt.Printf("  [%s] channel=%s from=%s\n", msg.Type, msg.ChannelID(), msg.From)
	})
	client.Signaling().OnStatusChange(func(state signaling.ConnectionState) {
		fmt.Printf("  [status] %s\n", state)
	})

	fmt.Println("[3/3] Connecting...")
	if err := client.Connect(); err != nil {
		fmt.Printf("ERROR connecting: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Connected. Listening for 120s; Ctrl-C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nStopping...")
	case <-time.After(120 * time.Second):
		fmt.Printf("\nTimeout. Received %d message(s).\n", msgCount)
	}

	_ = client.Disconnect()
	fmt.Println("Disconnected.")
}
