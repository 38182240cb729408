package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/civicdesk/internal/logger"
	"github.com/civicdesk/internal/model"
	"github.com/civicdesk/internal/realtime"
)

// watch is a terminal client for a single complaint: it logs in,
// follows the chat thread and status changes live, and sends anything
// typed on stdin as a chat message.
func main() {
	logger.SetPrefix("watch")

	url := flag.String("url", envOr("PORTAL_URL", "http://localhost:8080"), "portal base URL")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	complaintID := flag.String("complaint", "", "complaint id to watch")
	flag.Parse()

	if *email == "" || *password == "" || *complaintID == "" {
		fmt.Fprintln(os.Stderr, "usage: watch -email ... -password ... -complaint ... [-url ...]")
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := realtime.New(*url)
	loginCtx, loginCancel := context.WithTimeout(ctx, 15*time.Second)
	user, err := client.Login(loginCtx, *email, *password)
	loginCancel()
	if err != nil {
		logger.Errorf("login: %v", err)
		os.Exit(1)
	}
	defer client.Close()
	fmt.Printf("signed in as %s (%s)\n", user.Name, user.Role)

	client.Ledger.OnChange(func() {
		fmt.Printf("[%d unread notifications]\n", client.Ledger.UnreadCount())
	})

	timeline := client.OpenTimeline(*complaintID)
	defer timeline.Close()
	timeline.OnChange(func() {
		fmt.Printf("[status: %s]\n", timeline.Status())
	})

	thread := client.OpenChat()
	defer thread.Close()

	if err := thread.Open(ctx, *complaintID); err != nil {
		logger.Errorf("open thread: %v", err)
		os.Exit(1)
	}
	for _, m := range thread.Messages() {
		printMessage(thread, &m)
	}
	thread.OnChange(func() {
		msgs := thread.Messages()
		if len(msgs) > 0 {
			printMessage(thread, &msgs[len(msgs)-1])
		}
	})

	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			sendCtx, sendCancel := context.WithTimeout(ctx, 10*time.Second)
			if err := thread.Send(sendCtx, line); err != nil {
				fmt.Fprintf(os.Stderr, "send: %v\n", err)
			}
			sendCancel()
		}
		cancel()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	fmt.Println("bye")
}

func printMessage(t *realtime.ChatThread, m *model.ChatMessage) {
	who := "system"
	switch t.Classify(m) {
	case realtime.KindMine:
		who = "me"
	case realtime.KindTheirs:
		if m.Sender != nil {
			who = m.Sender.Name
		} else {
			who = "them"
		}
	}
	fmt.Printf("%s  %s: %s\n", m.CreatedAt.Format("15:04"), who, m.Body)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
