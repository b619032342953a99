package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/matheus3301/zpw/internal/api"
	"github.com/matheus3301/zpw/internal/client"
	"github.com/matheus3301/zpw/internal/lock"
	"github.com/matheus3301/zpw/internal/message"
	"github.com/matheus3301/zpw/internal/session"
	"github.com/matheus3301/zpw/internal/store"
	"github.com/matheus3301/zpw/internal/zpw"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides ZPW_SESSION and config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fail(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Commands that do not need a running daemon.
	switch args[0] {
	case "login":
		cmdLogin(sessionName, args[1:])
		return
	case "sessions":
		cmdSessions(*jsonFlag)
		return
	}

	c, err := client.New(session.SocketPath(sessionName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for session %q: %v\n", sessionName, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	if args[0] == "watch" {
		prefix := ""
		if len(args) > 1 {
			prefix = args[1]
		}
		cmdWatch(c, prefix, *jsonFlag)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, *jsonFlag)
	case "track":
		cmdTrack(ctx, c, args[1:], *jsonFlag)
	case "messages":
		thread := ""
		if len(args) > 1 {
			thread = args[1]
		}
		cmdMessages(ctx, c, thread, *jsonFlag)
	case "undo":
		requireArgs(args, 2, "zpwctl undo <global_msg_id>")
		cmdUndo(ctx, c, args[1], *jsonFlag)
	case "queue":
		requireArgs(args, 2, "zpwctl queue <global_msg_id>")
		cmdQueue(ctx, c, args[1], *jsonFlag)
	case "undo-status":
		requireArgs(args, 2, "zpwctl undo-status <request_id>")
		cmdUndoStatus(ctx, c, args[1], *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: zpwctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                          Show session status")
	fmt.Fprintln(os.Stderr, "  login [flags]                   Store credentials and reload the daemon")
	fmt.Fprintln(os.Stderr, "  sessions                        List known sessions")
	fmt.Fprintln(os.Stderr, "  track [flags] <global> <cli>    Track a sent message")
	fmt.Fprintln(os.Stderr, "  messages [thread]               List tracked messages")
	fmt.Fprintln(os.Stderr, "  undo <global_msg_id>            Undo a message now")
	fmt.Fprintln(os.Stderr, "  queue <global_msg_id>           Queue an undo")
	fmt.Fprintln(os.Stderr, "  undo-status <request_id>        Show a queued undo")
	fmt.Fprintln(os.Stderr, "  watch [prefix]                  Stream daemon events")
}

func cmdStatus(ctx context.Context, c *client.Client, jsonOut bool) {
	st, err := c.Status(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(st)
		return
	}
	fmt.Printf("Session:  %s\n", st.Session)
	fmt.Printf("Status:   %s\n", st.State)
	fmt.Printf("Uptime:   %dms\n", st.UptimeMs)
	fmt.Printf("Messages: %d\n", st.MessageCount)
	fmt.Printf("Pending:  %d\n", st.PendingUndos)
}

func cmdLogin(sessionName string, args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	secretKey := fs.String("secret-key", "", "base64 session secret key")
	imei := fs.String("imei", "", "device identifier")
	uid := fs.String("uid", "", "account id")
	cookie := fs.String("cookie", "", "session cookie header")
	chatHosts := fs.String("chat", "", "comma-separated chat service hosts")
	groupHosts := fs.String("group", "", "comma-separated group service hosts")
	_ = fs.Parse(args)

	creds := &session.Credentials{
		SecretKey: *secretKey,
		IMEI:      *imei,
		UID:       *uid,
		Cookie:    *cookie,
		ServiceMap: zpw.ServiceMap{
			Chat:  splitHosts(*chatHosts),
			Group: splitHosts(*groupHosts),
		},
	}
	if err := session.SaveCredentials(session.CredentialsPath(sessionName), creds); err != nil {
		fail(err)
	}
	fmt.Printf("Credentials saved for session %q.\n", sessionName)

	_, running, err := lock.Holder(session.Dir(sessionName))
	if err != nil || !running {
		fmt.Println("Daemon not running; credentials load on next start.")
		return
	}
	c, err := client.New(session.SocketPath(sessionName))
	if err != nil {
		fail(err)
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := c.ReloadCredentials(ctx)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Daemon reloaded. Status: %s\n", st.State)
}

func cmdSessions(jsonOut bool) {
	names, err := session.List()
	if err != nil {
		fail(err)
	}
	type row struct {
		Name    string `json:"name"`
		Running bool   `json:"running"`
		PID     int    `json:"pid,omitempty"`
	}
	rows := make([]row, 0, len(names))
	for _, name := range names {
		info, running, _ := lock.Holder(session.Dir(name))
		r := row{Name: name, Running: running}
		if running {
			r.PID = info.PID
		}
		rows = append(rows, r)
	}
	if jsonOut {
		outputJSON(rows)
		return
	}
	if len(rows) == 0 {
		fmt.Println("No sessions found.")
		return
	}
	for _, r := range rows {
		state := "stopped"
		if r.Running {
			state = fmt.Sprintf("running (pid %d)", r.PID)
		}
		fmt.Printf("%-20s %s\n", r.Name, state)
	}
}

func cmdTrack(ctx context.Context, c *client.Client, args []string, jsonOut bool) {
	fs := flag.NewFlagSet("track", flag.ExitOnError)
	thread := fs.String("thread", "", "thread id (user or group)")
	kind := fs.String("kind", "direct", "direct or group")
	body := fs.String("body", "", "message text")
	sentAt := fs.Int64("sent-at", 0, "send time in unix milliseconds (default now)")
	_ = fs.Parse(args)
	if fs.NArg() != 2 || *thread == "" {
		fmt.Fprintln(os.Stderr, "usage: zpwctl track --thread <id> [--kind direct|group] [--body text] <global_msg_id> <cli_msg_id>")
		os.Exit(1)
	}
	k, err := message.ParseKind(*kind)
	if err != nil {
		fail(err)
	}

	m, err := c.TrackMessage(ctx, &store.Message{
		ThreadID:    *thread,
		Kind:        k,
		GlobalMsgID: fs.Arg(0),
		CliMsgID:    fs.Arg(1),
		Body:        *body,
		SentAt:      *sentAt,
	})
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(messageJSON(m))
		return
	}
	fmt.Printf("Tracking %s in %s (%s).\n", m.GlobalMsgID, m.ThreadID, m.Kind)
}

func cmdMessages(ctx context.Context, c *client.Client, thread string, jsonOut bool) {
	msgs, err := c.ListMessages(ctx, thread, 50)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		out := make([]map[string]any, 0, len(msgs))
		for i := range msgs {
			out = append(out, messageJSON(&msgs[i]))
		}
		outputJSON(out)
		return
	}
	if len(msgs) == 0 {
		fmt.Println("No tracked messages.")
		return
	}
	for _, m := range msgs {
		sent := time.UnixMilli(m.SentAt).Format(time.DateTime)
		fmt.Printf("%-20s %-6s %-20s %-7s %s  %s\n", m.GlobalMsgID, m.Kind, m.ThreadID, m.Status, sent, truncate(m.Body, 40))
	}
}

func cmdUndo(ctx context.Context, c *client.Client, globalMsgID string, jsonOut bool) {
	res, err := c.Undo(ctx, globalMsgID)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(res)
		return
	}
	fmt.Printf("Undone %s (status %d).\n", res.GlobalMsgID, res.Status)
}

func cmdQueue(ctx context.Context, c *client.Client, globalMsgID string, jsonOut bool) {
	id, err := c.QueueUndo(ctx, globalMsgID)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(map[string]string{"request_id": id})
		return
	}
	fmt.Printf("Queued: %s\n", id)
}

func cmdUndoStatus(ctx context.Context, c *client.Client, requestID string, jsonOut bool) {
	r, err := c.GetUndo(ctx, requestID)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(r)
		return
	}
	fmt.Printf("Request: %s\n", r.RequestID)
	fmt.Printf("Message: %s\n", r.GlobalMsgID)
	fmt.Printf("Status:  %s\n", r.Status)
	if r.Status == store.UndoDone {
		fmt.Printf("Result:  %d\n", r.ResultStatus)
	}
	if r.ErrorMessage != "" {
		fmt.Printf("Error:   %s\n", r.ErrorMessage)
	}
}

func cmdWatch(c *client.Client, prefix string, jsonOut bool) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := c.WatchEvents(ctx, prefix, func(evt api.Event) error {
		if jsonOut {
			outputJSON(evt)
			return nil
		}
		payload, _ := json.Marshal(evt.Payload)
		fmt.Printf("%s %-24s %s\n", evt.Timestamp.Format(time.TimeOnly), evt.Kind, payload)
		return nil
	})
	if err != nil && !errors.Is(ctx.Err(), context.Canceled) {
		fail(err)
	}
}

func messageJSON(m *store.Message) map[string]any {
	return map[string]any{
		"thread_id":     m.ThreadID,
		"kind":          m.Kind.String(),
		"global_msg_id": m.GlobalMsgID,
		"cli_msg_id":    m.CliMsgID,
		"body":          m.Body,
		"status":        m.Status,
		"sent_at":       m.SentAt,
		"undone_at":     m.UndoneAt,
	}
}

func splitHosts(s string) []string {
	var hosts []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func requireArgs(args []string, n int, usage string) {
	if len(args) < n {
		fmt.Fprintf(os.Stderr, "usage: %s\n", usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
