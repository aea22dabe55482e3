package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tchatdev/tchat/internal/composer"
	"github.com/tchatdev/tchat/internal/config"
	"github.com/tchatdev/tchat/internal/contacts"
	"github.com/tchatdev/tchat/internal/gateway"
	"github.com/tchatdev/tchat/internal/session"
	"github.com/tchatdev/tchat/internal/store"
	"github.com/tchatdev/tchat/internal/stranger"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c, err := newCtl(sessionName, *jsonFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer c.close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "register":
		c.cmdRegister(ctx, args[1:])
	case "login":
		c.cmdLogin(ctx, args[1:])
	case "logout":
		c.cmdLogout()
	case "status":
		c.cmdStatus()
	case "whoami":
		c.cmdWhoami(ctx)
	case "profile":
		c.cmdProfile(ctx, args[1:])
	case "search":
		c.cmdSearch(ctx, args[1:])
	case "contacts":
		c.cmdContacts(ctx, args[1:])
	case "conversations":
		c.cmdConversations(ctx)
	case "new":
		c.cmdNew(ctx, args[1:])
	case "inbox":
		c.cmdInbox()
	case "open":
		c.cmdOpen(ctx, args[1:])
	case "send":
		c.cmdSend(ctx, args[1:])
	case "strangers":
		c.cmdStrangers(ctx, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: tchatctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  register <first> <last> <phone> <password>   Create an account")
	fmt.Fprintln(os.Stderr, "  login <phone> <password>                     Log in")
	fmt.Fprintln(os.Stderr, "  logout                                       Log out")
	fmt.Fprintln(os.Stderr, "  status                                       Show session status")
	fmt.Fprintln(os.Stderr, "  whoami                                       Show the logged-in profile")
	fmt.Fprintln(os.Stderr, "  profile <first> <last>                       Update profile names")
	fmt.Fprintln(os.Stderr, "  search <phone>                               Find a user by phone")
	fmt.Fprintln(os.Stderr, "  contacts list                                List contacts")
	fmt.Fprintln(os.Stderr, "  contacts add <phone>                         Add a contact by phone")
	fmt.Fprintln(os.Stderr, "  contacts alias <contact-id> <alias>          Rename a contact")
	fmt.Fprintln(os.Stderr, "  contacts rm <contact-id>                     Remove a contact")
	fmt.Fprintln(os.Stderr, "  conversations                                List conversations")
	fmt.Fprintln(os.Stderr, "  new <user-id|phone>                          Start a conversation")
	fmt.Fprintln(os.Stderr, "  inbox                                        Show the synced inbox view")
	fmt.Fprintln(os.Stderr, "  open <conversation-id>                       Read a conversation (marks it opened)")
	fmt.Fprintln(os.Stderr, "  send <conversation-id> <text...>             Send a message")
	fmt.Fprintln(os.Stderr, "  strangers [--accept|--decline]               Detect a non-contact conversation peer")
}

type ctl struct {
	sessionName string
	jsonOut     bool
	db          *store.DB
	state       *session.State
	client      *gateway.Client
}

func newCtl(sessionName string, jsonOut bool) (*ctl, error) {
	if err := session.EnsureDir(sessionName); err != nil {
		return nil, err
	}
	db, err := store.Open(session.DBPath(sessionName))
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	state, err := session.LoadState(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		cfg = config.Default()
	}
	client := gateway.New(cfg.APIURL, nil, gateway.WithTimeout(cfg.RequestTimeout()))
	if state.Authenticated() {
		client.SetToken(state.Token())
	}

	return &ctl{
		sessionName: sessionName,
		jsonOut:     jsonOut,
		db:          db,
		state:       state,
		client:      client,
	}, nil
}

func (c *ctl) close() {
	_ = c.db.Close()
}

// requireAuth returns the logged-in user id or exits.
func (c *ctl) requireAuth() string {
	if !c.state.Authenticated() {
		fmt.Fprintln(os.Stderr, "error: not logged in (run: tchatctl login <phone> <password>)")
		os.Exit(1)
	}
	return c.state.UserID()
}

func (c *ctl) cmdRegister(ctx context.Context, args []string) {
	if len(args) != 4 {
		fmt.Fprintln(os.Stderr, "usage: tchatctl register <first> <last> <phone> <password>")
		os.Exit(1)
	}
	resp, err := c.client.Register(ctx, gateway.RegisterRequest{
		FirstName: args[0],
		LastName:  args[1],
		Phone:     gateway.NormalizePhone(args[2]),
		Password:  args[3],
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := c.state.Login(resp.Token, resp.User.ID); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if c.jsonOut {
		outputJSON(resp.User)
		return
	}
	fmt.Printf("Registered as %s (%s)\n", resp.User.DisplayName(), resp.User.Phone)
}

func (c *ctl) cmdLogin(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: tchatctl login <phone> <password>")
		os.Exit(1)
	}
	resp, err := c.client.Login(ctx, gateway.Credentials{
		Phone:    gateway.NormalizePhone(args[0]),
		Password: args[1],
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	away, wasAway := c.state.SinceLastLogout(time.Now())
	if err := c.state.Login(resp.Token, resp.User.ID); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if c.jsonOut {
		outputJSON(resp.User)
		return
	}
	fmt.Printf("Logged in as %s\n", resp.User.DisplayName())
	if wasAway {
		fmt.Printf("Welcome back! You were away for %s\n", session.FormatAway(away))
	}
}

func (c *ctl) cmdLogout() {
	c.requireAuth()
	if err := c.state.Logout(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Logged out")
}

func (c *ctl) cmdStatus() {
	type statusOut struct {
		Session       string `json:"session"`
		Authenticated bool   `json:"authenticated"`
		UserID        string `json:"userId,omitempty"`
	}
	out := statusOut{
		Session:       c.sessionName,
		Authenticated: c.state.Authenticated(),
		UserID:        c.state.UserID(),
	}
	if c.jsonOut {
		outputJSON(out)
		return
	}
	fmt.Printf("Session:       %s\n", out.Session)
	fmt.Printf("Authenticated: %v\n", out.Authenticated)
	if out.Authenticated {
		fmt.Printf("User ID:       %s\n", out.UserID)
	}
}

func (c *ctl) cmdWhoami(ctx context.Context) {
	userID := c.requireAuth()
	user, err := c.client.Profile(ctx, userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if c.jsonOut {
		outputJSON(user)
		return
	}
	fmt.Printf("%s (%s)\n", user.DisplayName(), user.Phone)
}

func (c *ctl) cmdProfile(ctx context.Context, args []string) {
	userID := c.requireAuth()
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: tchatctl profile <first> <last>")
		os.Exit(1)
	}
	user, err := c.client.UpdateProfile(ctx, userID, gateway.ProfileUpdate{
		FirstName: args[0],
		LastName:  args[1],
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if c.jsonOut {
		outputJSON(user)
		return
	}
	fmt.Printf("Profile updated: %s\n", user.DisplayName())
}

func (c *ctl) cmdSearch(ctx context.Context, args []string) {
	c.requireAuth()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: tchatctl search <phone>")
		os.Exit(1)
	}
	user, err := c.client.SearchByPhone(ctx, args[0])
	if err != nil {
		if gateway.IsNotFound(err) {
			fmt.Println("No user found")
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if c.jsonOut {
		outputJSON(user)
		return
	}
	fmt.Printf("%s  %s  %s\n", user.ID, user.DisplayName(), user.Phone)
}

func (c *ctl) cmdContacts(ctx context.Context, args []string) {
	userID := c.requireAuth()
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		contacts, err := c.client.ListContacts(ctx, userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if c.jsonOut {
			outputJSON(contacts)
			return
		}
		if len(contacts) == 0 {
			fmt.Println("No contacts")
			return
		}
		for _, ct := range contacts {
			name := ct.Alias
			if name == "" {
				name = ct.UserID
			}
			fmt.Printf("%s  %s\n", ct.ID, name)
		}
	case "add":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: tchatctl contacts add <phone>")
			os.Exit(1)
		}
		user, err := c.client.SearchByPhone(ctx, args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		ct, err := c.client.AddContact(ctx, userID, user.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if c.jsonOut {
			outputJSON(ct)
			return
		}
		fmt.Printf("Added %s as contact %s\n", user.DisplayName(), ct.ID)
	case "alias":
		if len(args) != 3 {
			fmt.Fprintln(os.Stderr, "usage: tchatctl contacts alias <contact-id> <alias>")
			os.Exit(1)
		}
		if err := c.client.RenameContact(ctx, args[1], args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Contact renamed")
	case "rm":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: tchatctl contacts rm <contact-id>")
			os.Exit(1)
		}
		if err := c.client.RemoveContact(ctx, args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Contact removed")
	default:
		fmt.Fprintln(os.Stderr, "usage: tchatctl contacts <list|add|alias|rm>")
		os.Exit(1)
	}
}

func (c *ctl) cmdConversations(ctx context.Context) {
	userID := c.requireAuth()
	convs, err := c.client.ListConversations(ctx, userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if c.jsonOut {
		outputJSON(convs)
		return
	}
	if len(convs) == 0 {
		fmt.Println("No conversations")
		return
	}
	for _, conv := range convs {
		name := "(unknown)"
		if peer, ok := conv.Peer(userID); ok {
			name = peer.DisplayName()
		}
		fmt.Printf("%s  %s\n", conv.ID, name)
	}
}

func (c *ctl) cmdNew(ctx context.Context, args []string) {
	userID := c.requireAuth()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: tchatctl new <user-id|phone>")
		os.Exit(1)
	}
	peer, err := c.resolveUser(ctx, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	conv, err := c.client.CreateConversation(ctx, []string{userID, peer.ID})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if c.jsonOut {
		outputJSON(conv)
		return
	}
	fmt.Printf("Conversation %s with %s\n", conv.ID, peer.DisplayName())
}

// resolveUser accepts either a phone number (leading "+" or digits) or a
// raw user id.
func (c *ctl) resolveUser(ctx context.Context, arg string) (*gateway.User, error) {
	if strings.HasPrefix(arg, "+") || strings.IndexFunc(arg, func(r rune) bool { return r < '0' || r > '9' }) == -1 {
		return c.client.SearchByPhone(ctx, arg)
	}
	return c.client.Profile(ctx, arg)
}

func (c *ctl) cmdInbox() {
	c.requireAuth()
	entries, err := c.db.ListInbox()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if c.jsonOut {
		outputJSON(entries)
		return
	}
	if len(entries) == 0 {
		fmt.Println("Inbox empty (is tchatd running?)")
		return
	}
	for _, e := range entries {
		badge := ""
		if e.UnreadCount > 0 {
			badge = fmt.Sprintf(" [%d]", e.UnreadCount)
		}
		fmt.Printf("%s  %s%s  %s\n", e.ConversationID, e.PeerName, badge, e.LastPreview)
	}
}

func (c *ctl) cmdOpen(ctx context.Context, args []string) {
	userID := c.requireAuth()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: tchatctl open <conversation-id>")
		os.Exit(1)
	}
	convID := args[0]
	msgs, err := c.client.ListMessages(ctx, convID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	// Flag the open for the daemon so the unread counter resets on the
	// next poll cycle.
	if err := c.db.MarkOpened(convID); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if c.jsonOut {
		outputJSON(msgs)
		return
	}
	for _, m := range msgs {
		who := "them"
		if m.SenderID == userID {
			who = "me"
		}
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), who, m.Text)
	}
}

func (c *ctl) cmdSend(ctx context.Context, args []string) {
	userID := c.requireAuth()
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: tchatctl send <conversation-id> <text...>")
		os.Exit(1)
	}
	comp := composer.New(c.client, args[0], userID, nil, nil)
	if err := comp.Send(ctx, strings.Join(args[1:], " ")); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	msgs := comp.Messages()
	if len(msgs) == 0 {
		// Whitespace-only input is a no-op.
		return
	}
	sent := msgs[len(msgs)-1]
	if c.jsonOut {
		outputJSON(sent)
		return
	}
	fmt.Printf("Sent %s\n", sent.ID)
}

// cmdStrangers runs a one-shot detection pass: load contacts, project the
// current conversations, surface the first non-contact peer. --accept adds
// them as a contact, --decline dismisses the prompt for this run.
func (c *ctl) cmdStrangers(ctx context.Context, args []string) {
	userID := c.requireAuth()

	cache := contacts.NewCache(c.client, userID, nil, nil)
	if err := cache.Reload(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	convs, err := c.client.ListConversations(ctx, userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	obs := make([]stranger.Observation, 0, len(convs))
	for _, conv := range convs {
		if peer, ok := conv.Peer(userID); ok {
			obs = append(obs, stranger.Observation{ConversationID: conv.ID, Peer: peer})
		}
	}

	det := stranger.New(cache, nil, nil)
	det.Evaluate(obs)

	p := det.Pending()
	if p == nil {
		if c.jsonOut {
			outputJSON(nil)
			return
		}
		fmt.Println("No strangers")
		return
	}

	if len(args) > 0 {
		switch args[0] {
		case "--accept":
			if err := det.Accept(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Added %s as contact\n", p.Candidate.DisplayName())
			return
		case "--decline":
			det.Decline()
			fmt.Println("Dismissed")
			return
		default:
			fmt.Fprintln(os.Stderr, "usage: tchatctl strangers [--accept|--decline]")
			os.Exit(1)
		}
	}

	if c.jsonOut {
		outputJSON(p)
		return
	}
	fmt.Printf("%s is not in your contacts (conversation %s)\n", p.Candidate.DisplayName(), p.ConversationID)
	fmt.Println("Run 'tchatctl strangers --accept' to add them, '--decline' to dismiss.")
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
