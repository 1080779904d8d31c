package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meetwire/meetwire/internal/call"
	"github.com/meetwire/meetwire/internal/client"
	"github.com/meetwire/meetwire/internal/config"
	applog "github.com/meetwire/meetwire/internal/log"
	"github.com/meetwire/meetwire/internal/proto"
	"github.com/meetwire/meetwire/internal/transport"
	"github.com/meetwire/meetwire/internal/utils"
)

var (
	flagConfig   string
	flagRelay    string
	flagIdentity string
	flagPeer     string
)

func main() {
	root := &cobra.Command{
		Use:   "meetwire",
		Short: "Terminal chat and call client",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
		SilenceUsage: true,
	}
	root.Flags().StringVar(&flagConfig, "config", "", "path to config file")
	root.Flags().StringVar(&flagRelay, "relay", "", "relay websocket URL (overrides config)")
	root.Flags().StringVar(&flagIdentity, "identity", "", "local identity (overrides config)")
	root.Flags().StringVar(&flagPeer, "peer", "", "open a room with this peer on start")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	logger := applog.New("warn")
	cfg, _, err := config.Load(logger, flagConfig)
	if err != nil {
		return err
	}
	if flagRelay != "" {
		cfg.RelayURL = flagRelay
	}
	if flagIdentity != "" {
		cfg.Identity = flagIdentity
	}
	if cfg.Identity == "" {
		cfg.Identity = utils.GuestIdentity()
	}

	ws := transport.NewWS(cfg.RelayURL+"?identity="+cfg.Identity, logger)
	c := client.New(client.Options{
		Identity:   cfg.Identity,
		Channel:    ws,
		TypingIdle: cfg.TypingIdle,
		NewPeer:    call.NewPeerFactory(cfg.ICEServers),
		Media:      call.NewDeviceMedia(),
		Log:        logger,
		Handlers: client.Handlers{
			OnMessage: func(m proto.ChatMessageData) {
				if m.TimestampDisplay != "" {
					fmt.Printf("[%s] %s: %s\n", m.TimestampDisplay, m.Identity, renderContent(m))
				} else {
					fmt.Printf("%s: %s\n", m.Identity, renderContent(m))
				}
			},
			OnHistory: func(msgs []proto.ChatMessageData) {
				fmt.Printf("-- %d messages --\n", len(msgs))
				for _, m := range msgs {
					fmt.Printf("[%s] #%d %s: %s\n", m.TimestampDisplay, m.ID, m.Identity, renderContent(m))
				}
			},
			OnMessageDeleted: func(id int64) {
				fmt.Printf("-- message #%d deleted --\n", id)
			},
			OnTypingChanged: func(active bool, identity string) {
				if active {
					fmt.Printf("-- %s is typing --\n", identity)
				}
			},
			OnPresenceChanged: func(members []string) {
				fmt.Printf("-- online: %s --\n", strings.Join(members, ", "))
			},
			OnCallStateChanged: func(state call.State) {
				fmt.Printf("-- call %s --\n", state)
			},
			OnTranscript: func(t proto.TranscriptData) {
				marker := "…"
				if t.Final {
					marker = ""
				}
				fmt.Printf("-- %s says: %s%s --\n", t.Identity, t.Text, marker)
			},
			OnError: func(err error) {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			},
			OnLeaveRoom: func(room string) {
				fmt.Printf("-- left %s --\n", room)
			},
		},
	})
	ws.OnDisconnect(c.HandleDisconnect)

	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Shutdown()

	fmt.Printf("Connected to %s as %s\n", cfg.RelayURL, cfg.Identity)
	if flagPeer != "" {
		room, err := c.Open(flagPeer)
		if err != nil {
			return err
		}
		fmt.Printf("Joined %s\n", room)
	}
	fmt.Println("Type to chat. Commands: /open <peer> /call /videocall /hangup /mute /del <id> /tts <text> /clear /quit")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(c, line); quit {
				return nil
			}
		}
	}
}

func handleLine(c *client.Client, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		c.TypingActivity()
		if err := c.SendMessage(line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		return false
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	var err error
	switch cmd {
	case "/quit":
		return true
	case "/open":
		if rest == "" {
			err = fmt.Errorf("usage: /open <peer>")
			break
		}
		var room string
		if room, err = c.Open(rest); err == nil {
			fmt.Printf("Joined %s\n", room)
		}
	case "/call":
		err = c.StartCall(false)
	case "/videocall":
		err = c.StartCall(true)
	case "/hangup":
		c.Hangup()
	case "/mute":
		if c.ToggleMute() {
			fmt.Println("-- muted --")
		} else {
			fmt.Println("-- unmuted --")
		}
	case "/del":
		var id int64
		if id, err = strconv.ParseInt(rest, 10, 64); err != nil {
			err = fmt.Errorf("usage: /del <id>")
			break
		}
		err = c.DeleteMessage(id)
	case "/tts":
		if rest == "" {
			err = fmt.Errorf("usage: /tts <text>")
			break
		}
		err = c.SendTTS(rest)
	case "/clear":
		err = c.ClearHistory()
	default:
		err = fmt.Errorf("unknown command %s", cmd)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return false
}

func renderContent(m proto.ChatMessageData) string {
	switch m.Kind {
	case proto.KindImage:
		return "[image]"
	case proto.KindFile:
		return "[file: " + m.OriginalName + "]"
	case proto.KindTTSEcho:
		return "[tts] " + m.Content
	default:
		return m.Content
	}
}
