package testhelpers

import (
	"fmt"
	"sync"

	tele "gopkg.in/telebot.v3"
)

// TeleContext is a tele.Context for handler and middleware tests. Only the
// methods the bot uses are implemented; the embedded interface is nil, so
// anything else panics.
type TeleContext struct {
	tele.Context

	User     *tele.User
	ArgList  []string
	Payload  string
	Incoming *tele.Message

	mu        sync.Mutex
	sent      []string
	edited    []string
	responses []*tele.CallbackResponse
}

func NewTeleContext(userID int64, args ...string) *TeleContext {
	return &TeleContext{
		User:    &tele.User{ID: userID, FirstName: "Test"},
		ArgList: args,
	}
}

func (c *TeleContext) Sender() *tele.User       { return c.User }
func (c *TeleContext) Args() []string           { return c.ArgList }
func (c *TeleContext) Data() string             { return c.Payload }
func (c *TeleContext) Message() *tele.Message   { return c.Incoming }
func (c *TeleContext) Callback() *tele.Callback { return nil }

func (c *TeleContext) Send(what interface{}, _ ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, fmt.Sprint(what))
	return nil
}

func (c *TeleContext) Reply(what interface{}, opts ...interface{}) error {
	return c.Send(what, opts...)
}

func (c *TeleContext) Edit(what interface{}, _ ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edited = append(c.edited, fmt.Sprint(what))
	return nil
}

func (c *TeleContext) Respond(resp ...*tele.CallbackResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, resp...)
	return nil
}

// Sent returns every sent message text in order.
func (c *TeleContext) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// LastSent returns the last sent message text, or "".
func (c *TeleContext) LastSent() string {
	sent := c.Sent()
	if len(sent) == 0 {
		return ""
	}
	return sent[len(sent)-1]
}

func (c *TeleContext) Edited() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.edited...)
}

func (c *TeleContext) Responses() []*tele.CallbackResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*tele.CallbackResponse(nil), c.responses...)
}
