package cmd

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/cocreate-app/cocreate/backend/internal/protocol"
	"github.com/cocreate-app/cocreate/backend/pkg/client"
)

var (
	joinName string
	joinFile string
)

var joinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Join a room and follow it until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE:  runJoin,
}

func init() {
	joinCmd.Flags().StringVar(&joinName, "name", "cli", "display name in the room")
	joinCmd.Flags().StringVar(&joinFile, "file", "", "seed the shared document from this file")
	rootCmd.AddCommand(joinCmd)
}

func runJoin(cmd *cobra.Command, args []string) error {
	roomID := args[0]

	target, err := wsURL()
	if err != nil {
		return err
	}

	ch := client.Dial(target)
	defer ch.Close()

	doc := client.NewDocSync(ch, client.EditorFunc(func(text string) {
		fmt.Println("--- document updated ---")
		fmt.Println(text)
	}))

	wb := client.NewWhiteboard(ch, nil)
	wb.Bind(roomID)

	session := client.NewSession(ch, doc)

	fatal := make(chan error, 1)
	session.TerminalError = func(err error) {
		select {
		case fatal <- err:
		default:
		}
	}
	session.PeerJoined = func(p protocol.Participant) {
		fmt.Printf("* %s joined the room\n", p.Username)
	}
	session.PeerLeft = func(p protocol.Participant) {
		fmt.Printf("* %s left the room\n", p.Username)
	}
	session.Joined = func() {
		fmt.Printf("joined room %s as %s\n", roomID, joinName)
		wb.RequestSync()
		if joinFile != "" {
			data, err := os.ReadFile(joinFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "read %s: %v\n", joinFile, err)
				return
			}
			doc.LocalChange(string(data))
			fmt.Printf("seeded document from %s (%d bytes)\n", joinFile, len(data))
		}
	}

	if err := session.Join(roomID, joinName); err != nil {
		return err
	}
	defer session.Leave()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	select {
	case <-sig:
		fmt.Println("leaving room")
		return nil
	case err := <-fatal:
		return fmt.Errorf("connection lost: %w", err)
	}
}

func wsURL() (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
