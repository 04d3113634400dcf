package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"crisis-chat/backend/internal/models"
	"crisis-chat/backend/internal/service"
	"crisis-chat/backend/internal/ws"
)

func newChatCmd() *cobra.Command {
	var (
		serverURL string
		sessionID string
		token     string
		name      string
		anonymous bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat over the websocket endpoint, one message per input line",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := url.Parse(serverURL)
			if err != nil {
				return err
			}
			q := u.Query()
			if sessionID != "" {
				q.Set("sessionId", sessionID)
			}
			if token != "" {
				q.Set("access_token", token)
			}
			u.RawQuery = q.Encode()

			conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), u.String(), nil)
			if err != nil {
				return fmt.Errorf("failed to connect to %s: %w", serverURL, err)
			}
			defer conn.Close()

			done := make(chan struct{})
			go func() {
				defer close(done)
				printFrames(cmd.OutOrStdout(), conn)
			}()

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				content, err := json.Marshal(models.SendMessageRequest{
					Content:     line,
					SenderName:  name,
					IsAnonymous: anonymous,
				})
				if err != nil {
					return err
				}
				if err := conn.WriteJSON(ws.Frame{Type: ws.FrameChat, Content: content}); err != nil {
					return err
				}
			}

			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			<-done
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", "ws://localhost:8081/ws", "websocket endpoint")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "join an existing session")
	cmd.Flags().StringVarP(&token, "token", "t", "", "bearer token, see crisisctl token")
	cmd.Flags().StringVarP(&name, "name", "n", "cli", "sender name")
	cmd.Flags().BoolVar(&anonymous, "anonymous", true, "do not attach the session to the token's user")
	return cmd
}

func printFrames(w io.Writer, conn *websocket.Conn) {
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	for {
		var f ws.Frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}

		switch f.Type {
		case ws.FrameMessage:
			var resp service.IngestResponse
			if json.Unmarshal(f.Content, &resp) != nil {
				continue
			}
			fmt.Fprintf(w, "%s [%s] %s: %s\n", cyan(resp.Session.ID), levelColor(resp.Message.CrisisLevel).Sprint(resp.Message.CrisisLevel),
				resp.Message.Sender.Name, resp.Message.Content)
		case ws.FrameEscalation:
			var rec models.EscalationRecord
			if json.Unmarshal(f.Content, &rec) != nil {
				continue
			}
			fmt.Fprintf(w, "%s %s (%s) %s\n", red("ESCALATION"), rec.Level, rec.Reason, rec.Resolution)
		case ws.FrameError:
			var e ws.ErrorContent
			_ = json.Unmarshal(f.Content, &e)
			fmt.Fprintf(w, "%s %s: %s\n", red("error"), e.Code, e.Message)
		}
	}
}
