package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"
)

type sender interface {
	Send(to tb.Recipient, what interface{}, options ...interface{}) (*tb.Message, error)
}

type message struct {
	to    tb.Recipient
	text  string
	plain bool
}

type Bot struct {
	bot      *tb.Bot
	sender   sender
	chat     *tb.Chat
	notify   []tb.Recipient
	forward  tb.Recipient
	boot     time.Time
	messages chan message
	done     chan struct{}
	stop     sync.Once
}

// New creates a bot controlled from controlChatID. Notifications are also
// sent to orderChatID and inbound messages are copied to forwardChatID, both
// are optional.
func New(token string, controlChatID, orderChatID, forwardChatID int64) (*Bot, error) {
	b, err := tb.NewBot(tb.Settings{
		Token:  token,
		Poller: &tb.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: couldn't create bot: %w", err)
	}
	chat, err := b.ChatByID(strconv.FormatInt(controlChatID, 10))
	if err != nil {
		return nil, fmt.Errorf("telegram: couldn't create chat %d: %w", controlChatID, err)
	}
	bot := newBot(b, chat, orderChatID, forwardChatID)
	bot.bot = b
	return bot, nil
}

func newBot(s sender, chat *tb.Chat, orderChatID, forwardChatID int64) *Bot {
	bot := &Bot{
		sender:   s,
		chat:     chat,
		notify:   []tb.Recipient{chat},
		boot:     time.Now(),
		messages: make(chan message, 100),
		done:     make(chan struct{}),
	}
	if orderChatID != 0 && orderChatID != chat.ID {
		bot.notify = append(bot.notify, &tb.Chat{ID: orderChatID})
	}
	if forwardChatID != 0 {
		bot.forward = &tb.Chat{ID: forwardChatID}
	}
	return bot
}

// ID returns the user id of the bot.
func (b *Bot) ID() int64 {
	return int64(b.bot.Me.ID)
}

// HandleChat calls handler with text messages and channel posts from
// chatIDs or the control chat.
func (b *Bot) HandleChat(chatIDs []int64, skipReply bool, handler func(chatID int64, title, text string)) {
	allowed := map[int64]bool{b.chat.ID: true}
	for _, id := range chatIDs {
		allowed[id] = true
	}
	h := func(m *tb.Message) {
		if !allowed[m.Chat.ID] {
			return
		}
		if m.Time().Before(b.boot) {
			return
		}
		if m.IsReply() && skipReply {
			return
		}
		handler(m.Chat.ID, chatTitle(m.Chat), m.Text)
	}
	b.bot.Handle(tb.OnText, h)
	b.bot.Handle(tb.OnChannelPost, h)
}

// HandleCommand registers a command whose reply is sent back to the chat it
// came from. Admin commands are only answered in the control chat.
func (b *Bot) HandleCommand(command string, admin bool, handler func(payload string) string) {
	b.bot.Handle(fmt.Sprintf("/%s", command), func(m *tb.Message) {
		if reply := b.command(m, admin, handler); reply != "" {
			if err := b.send(m.Chat, reply, false); err != nil {
				log.Println(err)
			}
		}
	})
}

func (b *Bot) command(m *tb.Message, admin bool, handler func(string) string) string {
	if m.Time().Before(b.boot) {
		return ""
	}
	if admin && m.Chat.ID != b.chat.ID {
		return "❌ Not authorized"
	}
	return handler(m.Payload)
}

func (b *Bot) Run(ctx context.Context) error {
	go b.bot.Start()
	defer b.bot.Stop()
	defer b.bot.Send(b.chat, "🛑 bot stopping")
	return b.loop(ctx)
}

func (b *Bot) loop(ctx context.Context) error {
	defer b.stop.Do(func() { close(b.done) })
	var msg message
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg = <-b.messages:
		}
		if err := b.send(msg.to, msg.text, msg.plain); err != nil {
			log.Println(err)
		}
		select {
		case <-ctx.Done():
			return nil
		// Wait to avoid rate limit errors
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (b *Bot) send(to tb.Recipient, text string, plain bool) error {
	opts := tb.ModeDefault
	if !plain && (strings.Contains(text, "`") || strings.Contains(text, "*")) {
		opts = tb.ModeMarkdown
	}
	if _, err := b.sender.Send(to, text, opts); err != nil {
		return fmt.Errorf("telegram: couldn't send message to %s: %w", to.Recipient(), err)
	}
	return nil
}

// Print logs v and queues it to the control chat.
func (b *Bot) Print(v ...interface{}) {
	msg := fmt.Sprintln(v...)
	log.Print(msg)
	b.queue(message{to: b.chat, text: msg})
}

// Notify logs v and queues it to the control chat and the order chat.
func (b *Bot) Notify(v ...interface{}) {
	text := strings.TrimSuffix(fmt.Sprintln(v...), "\n")
	log.Println(text)
	for _, to := range b.notify {
		b.queue(message{to: to, text: text})
	}
}

// Forward copies an inbound message to the forward chat if there is one.
func (b *Bot) Forward(from, text string) {
	if b.forward == nil {
		return
	}
	b.queue(message{to: b.forward, text: fmt.Sprintf("From %s:\n%s", from, text), plain: true})
}

// queue drops messages once the send loop is stopped.
func (b *Bot) queue(msg message) {
	select {
	case b.messages <- msg:
	case <-b.done:
		log.Println("telegram: bot stopped, message not sent")
	}
}

func chatTitle(c *tb.Chat) string {
	if c.Title != "" {
		return c.Title
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
