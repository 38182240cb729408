package realtime

import (
	"context"

	"github.com/civicdesk/internal/model"
)

// Client bundles the synchronization pieces behind one handle: REST
// access, the socket session, room membership, and the notification
// ledger. Chat threads and timelines are opened per complaint.
type Client struct {
	Rest    *Rest
	Session *Session
	Rooms   *Rooms
	Ledger  *Ledger

	baseURL string
	user    model.UserPublic
}

// New builds an unauthenticated client for a portal base URL.
func New(baseURL string) *Client {
	return &Client{
		Rest:    NewRest(baseURL),
		baseURL: baseURL,
	}
}

// Login authenticates, brings the socket up, and starts the ledger.
// Everything realtime is deferred until here so nothing runs with
// partial credentials.
func (c *Client) Login(ctx context.Context, email, password string) (model.UserPublic, error) {
	user, err := c.Rest.Login(ctx, email, password)
	if err != nil {
		return model.UserPublic{}, err
	}
	c.user = user
	c.Session = NewSession(c.baseURL, user.ID, c.Rest.Token())
	c.Rooms = NewRooms(c.Session)
	c.Ledger = NewLedger(c.Rest, c.Session)
	if err := c.Session.Connect(); err != nil {
		return model.UserPublic{}, err
	}
	c.Ledger.Start(ctx)
	return user, nil
}

// Attach wires the client to an existing token and user id, for
// callers that authenticated out of band.
func (c *Client) Attach(ctx context.Context, userID, token string) error {
	c.Rest.SetToken(token)
	c.user = model.UserPublic{ID: userID}
	c.Session = NewSession(c.baseURL, userID, token)
	c.Rooms = NewRooms(c.Session)
	c.Ledger = NewLedger(c.Rest, c.Session)
	if err := c.Session.Connect(); err != nil {
		return err
	}
	c.Ledger.Start(ctx)
	return nil
}

func (c *Client) User() model.UserPublic { return c.user }

// OpenChat returns a thread bound to this user, ready for Open.
func (c *Client) OpenChat() *ChatThread {
	return NewChatThread(c.Rest, c.Session, c.Rooms, c.user.ID)
}

// OpenTimeline returns a reconciler for one complaint.
func (c *Client) OpenTimeline(complaintID string) *Timeline {
	return NewTimeline(c.Rest, c.Session, complaintID)
}

// Close tears down the socket. REST access keeps working.
func (c *Client) Close() {
	if c.Ledger != nil {
		c.Ledger.Close()
	}
	if c.Session != nil {
		c.Session.Close()
	}
}
