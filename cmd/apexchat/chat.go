package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Rrens/apex-chat/internal/auth"
	"github.com/Rrens/apex-chat/internal/chatsync"
	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/Rrens/apex-chat/internal/history"
	"github.com/Rrens/apex-chat/internal/restclient"
	"github.com/Rrens/apex-chat/internal/session"
	"github.com/Rrens/apex-chat/internal/socketio"
	"github.com/spf13/cobra"
)

const chatHelp = `Commands:
  /new [title]   start a new session
  /open <id>     switch to a session
  /list          list sessions
  /history       reprint the open session
  /logout        sign out and leave
  /quit          leave
Anything else is sent to the assistant.`

var (
	chatSession string
	chatNew     string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat interactively",
	Long: `Open an interactive chat.

Without --session or --new the most recent session is opened, or a new one
is created when there are none.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "Open this session id")
	chatCmd.Flags().StringVar(&chatNew, "new", "", "Start a new session with this title")
	chatCmd.MarkFlagsMutuallyExclusive("session", "new")
	rootCmd.AddCommand(chatCmd)
}

func newSessionLayer(c *restclient.Client) (*session.Store, *history.Loader) {
	store := session.NewStore(c)
	return store, history.NewLoader(c, store)
}

func runChat(ctx context.Context) error {
	rest, err := newRESTClient()
	if err != nil {
		return err
	}

	wsURL, err := cfg.Channel.URL(cfg.Client.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid channel URL: %w", err)
	}
	channel := socketio.NewClient(socketio.Options{
		URL:              wsURL,
		Jar:              rest.Jar(),
		HandshakeTimeout: cfg.Channel.HandshakeTimeout,
		WriteTimeout:     cfg.Channel.WriteTimeout,
	})
	defer channel.Close()

	store, loader := newSessionLayer(rest)
	coord := chatsync.New(auth.NewGate(rest), store, loader, channel)

	if coord.Start(ctx) != domain.AuthAuthenticated {
		return errNotSignedIn
	}
	fmt.Println(titleStyle.Render("Hello, " + coord.User().DisplayName()))

	observer := func(sessionID string, msg domain.Message) {
		if msg.Sender != domain.SenderAI {
			return
		}
		if active, ok := coord.ActiveSession(); ok && active.ID == sessionID {
			printMessage(msg)
			return
		}
		title := sessionID
		if s, ok := store.Session(sessionID); ok {
			title = s.DisplayTitle()
		}
		fmt.Println(idStyle.Render("New reply in " + title))
	}

	if err := connectLive(ctx, coord, channel, observer); err != nil {
		fmt.Println(errStyle.Render("Live channel unavailable, replies will not arrive: " + err.Error()))
	}

	if err := openInitial(ctx, coord); err != nil {
		return err
	}
	fmt.Println(idStyle.Render("Type /help for commands."))

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			if _, err := coord.Submit(line); err != nil {
				fmt.Println(errStyle.Render(err.Error()))
			}
			continue
		}

		command, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch command {
		case "/quit", "/exit":
			return nil
		case "/logout":
			err := rest.Logout(ctx)
			coord.Logout()
			if err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}
			fmt.Println(titleStyle.Render("Signed out"))
			return nil
		case "/help":
			fmt.Println(chatHelp)
		case "/new":
			s, err := coord.CreateSession(ctx, arg)
			if err != nil {
				fmt.Println(errStyle.Render("Could not create session: " + err.Error()))
				continue
			}
			printHeader(s)
		case "/open":
			if err := openSession(ctx, coord, arg); err != nil {
				fmt.Println(errStyle.Render(err.Error()))
			}
		case "/list":
			for _, s := range coord.Sessions() {
				marker := " "
				if active, ok := coord.ActiveSession(); ok && active.ID == s.ID {
					marker = "*"
				}
				fmt.Printf("%s %s %s\n", marker, s.DisplayTitle(), idStyle.Render(s.ID))
			}
		case "/history":
			active, ok := coord.ActiveSession()
			if !ok {
				fmt.Println(errStyle.Render(chatsync.ErrNoActiveSession.Error()))
				continue
			}
			printHeader(active)
			for _, m := range coord.Messages(active.ID) {
				printMessage(m)
			}
		default:
			fmt.Println(errStyle.Render("Unknown command " + command))
		}
	}
	return scanner.Err()
}

// liveChannel is the part of the socket client the chat loop connects
type liveChannel interface {
	Connect(ctx context.Context) error
}

// connectLive installs the observer before connecting so no early reply goes unprinted
func connectLive(ctx context.Context, coord *chatsync.Coordinator, ch liveChannel, observer chatsync.Observer) error {
	coord.SetObserver(observer)
	return ch.Connect(ctx)
}

func openInitial(ctx context.Context, coord *chatsync.Coordinator) error {
	if chatSession != "" {
		return openSession(ctx, coord, chatSession)
	}

	if sessions := coord.Sessions(); chatNew == "" && len(sessions) > 0 {
		return openSession(ctx, coord, sessions[0].ID)
	}

	s, err := coord.CreateSession(ctx, chatNew)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	printHeader(s)
	return nil
}

func openSession(ctx context.Context, coord *chatsync.Coordinator, id string) error {
	msgs, err := coord.Activate(ctx, id)
	if errors.Is(err, chatsync.ErrInvalidSession) || errors.Is(err, chatsync.ErrNotAuthenticated) {
		return err
	}

	active, _ := coord.ActiveSession()
	printHeader(active)
	if err != nil {
		// the session opens empty when history cannot be fetched
		fmt.Println(errStyle.Render("Could not load history: " + err.Error()))
	}
	for _, m := range msgs {
		printMessage(m)
	}
	return nil
}

func printHeader(s domain.ChatSession) {
	fmt.Printf("%s %s\n", titleStyle.Render("== "+s.DisplayTitle()), idStyle.Render(s.ID))
}

func printMessage(m domain.Message) {
	label := userStyle.Render("you")
	if m.Sender == domain.SenderAI {
		label = aiStyle.Render("ai ")
	}
	fmt.Printf("%s %s %s\n", timeStyle.Render(m.TimeLabel()), label, m.Text)
}
