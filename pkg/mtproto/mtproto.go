package mtproto

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

type Message struct {
	ChatID int64
	Title  string
	Text   string
}

type Listener struct {
	id       int
	hash     string
	phone    string
	session  string
	ignore   map[int64]bool
	log      func(v ...interface{})
	callback func(Message)
	code     func(context.Context) (string, error)
}

// New creates a listener that logs in as a user account and calls back with
// every inbound message. Messages sent by the ignored user ids are dropped,
// so bots posting in the same chats don't read their own notifications.
func New(id int, hash, phone, session string, ignore []int64, log func(v ...interface{}), callback func(Message), code func(context.Context) (string, error)) *Listener {
	ignored := make(map[int64]bool)
	for _, userID := range ignore {
		ignored[userID] = true
	}
	return &Listener{
		id:       id,
		hash:     hash,
		phone:    phone,
		session:  session,
		ignore:   ignored,
		log:      log,
		callback: callback,
		code:     code,
	}
}

func (l *Listener) Listen(ctx context.Context) error {
	codePrompt := func(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
		code, err := l.code(ctx)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(code), nil
	}

	// This will setup and perform authentication flow.
	flow := auth.NewFlow(
		auth.CodeOnly(l.phone, auth.CodeAuthenticatorFunc(codePrompt)),
		auth.SendCodeOptions{},
	)

	dispatcher := tg.NewUpdateDispatcher()

	client := telegram.NewClient(l.id, l.hash, telegram.Options{
		SessionStorage: &session.FileStorage{
			Path: l.session,
		},
		UpdateHandler: dispatcher,
	})

	return client.Run(ctx, func(ctx context.Context) error {
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("mtproto: couldn't authenticate: %w", err)
		}
		dispatcher.OnNewMessage(func(ctx context.Context, entities tg.Entities, u *tg.UpdateNewMessage) error {
			l.handle(entities, u.Message)
			return nil
		})
		dispatcher.OnNewChannelMessage(func(ctx context.Context, entities tg.Entities, u *tg.UpdateNewChannelMessage) error {
			l.handle(entities, u.Message)
			return nil
		})
		l.log("Listening for mtproto messages...")
		<-ctx.Done()
		return nil
	})
}

func (l *Listener) handle(entities tg.Entities, msg tg.MessageClass) {
	m, ok := msg.(*tg.Message)
	if !ok || m.Out {
		// Outgoing message, not interesting.
		return
	}
	peerID, err := fromPeer(m.PeerID)
	if err != nil {
		log.Println(err)
		return
	}
	if m.FromID != nil {
		if senderID, err := fromPeer(m.FromID); err == nil && l.ignore[senderID] {
			return
		}
	}
	l.callback(Message{
		ChatID: peerID,
		Title:  title(entities, m.PeerID),
		Text:   m.Message,
	})
}

// PeerID converts bot API chat ids to mtproto peer ids.
func PeerID(chatID int64) int64 {
	const channelPrefix = -1000000000000
	switch {
	case chatID <= channelPrefix:
		return channelPrefix - chatID
	case chatID < 0:
		return -chatID
	default:
		return chatID
	}
}

func fromPeer(p tg.PeerClass) (id int64, err error) {
	switch v := p.(type) {
	case *tg.PeerUser:
		return v.UserID, nil
	case *tg.PeerChannel:
		return v.ChannelID, nil
	case *tg.PeerChat:
		return v.ChatID, nil
	}
	return 0, fmt.Errorf("mtproto: invalid peer: %T", p)
}

func title(entities tg.Entities, p tg.PeerClass) string {
	switch v := p.(type) {
	case *tg.PeerUser:
		if u, ok := entities.Users[v.UserID]; ok {
			return strings.TrimSpace(u.FirstName + " " + u.LastName)
		}
	case *tg.PeerChannel:
		if c, ok := entities.Channels[v.ChannelID]; ok {
			return c.Title
		}
	case *tg.PeerChat:
		if c, ok := entities.Chats[v.ChatID]; ok {
			return c.Title
		}
	}
	return ""
}
