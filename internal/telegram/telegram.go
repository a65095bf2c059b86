package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Farengier/gatewayd-console/internal/session"
	"github.com/Farengier/gatewayd-console/internal/signal"
	"github.com/Farengier/gatewayd-console/internal/telegram/chat"
	"github.com/Farengier/gatewayd-console/internal/telegram/commands"
	"github.com/Farengier/gatewayd-console/internal/telegram/domain"
	"github.com/Farengier/gatewayd-console/internal/telegram/interfaces"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

const msgInternalErr = "Internal error, please contact admin"
const eventsBuffer = 8

type Config interface {
	Token() string
	Chats() []int64
	SpamFilterDurationSensitive() time.Duration
	SpamFilterDurationLow() time.Duration
}

type Session interface {
	commands.Session
	Subscribe(buffer int) <-chan session.Event
}

type bot struct {
	api           sender
	chats         *chat.Storage
	allowed       map[int64]bool
	sess          Session
	bus           commands.Dispatcher
	spamDurations map[int]time.Duration
	commands      map[string]interfaces.Command
	now           func() time.Time
}

func newBot(cfg Config, api sender, bus commands.Dispatcher, sess Session) *bot {
	b := &bot{
		api:     api,
		chats:   chat.NewStorage(),
		allowed: map[int64]bool{},
		sess:    sess,
		bus:     bus,
		spamDurations: map[int]time.Duration{
			domain.SpamLevelLow:       cfg.SpamFilterDurationLow(),
			domain.SpamLevelSensitive: cfg.SpamFilterDurationSensitive(),
		},
		now: time.Now,
	}
	for _, id := range cfg.Chats() {
		b.allowed[id] = true
	}
	b.initCommands()
	return b
}

func (b *bot) initCommands() {
	cmds := []interfaces.Command{
		commands.Start(),
		commands.Login(b.bus, b.sess),
		commands.Logout(b.bus),
		commands.Status(b.sess),
	}

	b.commands = map[string]interfaces.Command{}
	for _, cmd := range cmds {
		if _, ok := b.commands[cmd.Cmd()]; ok {
			panic("Commands intersection: " + cmd.Cmd())
		}
		b.commands[cmd.Cmd()] = cmd
	}
}

// StartBot connects to Telegram and serves console commands until shutdown.
func StartBot(cfg Config, bus commands.Dispatcher, sess Session) error {
	tgbot, err := tgbotapi.NewBotAPI(cfg.Token())
	if err != nil {
		return fmt.Errorf("telegram bot start failed: %w", err)
	}

	instance := newBot(cfg, tgbot, bus, sess)
	instance.setCommands()

	// long polling, each request waits up to 30 seconds for updates
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := tgbot.GetUpdatesChan(updateConfig)
	events := sess.Subscribe(eventsBuffer)

	tbctx, cncl := context.WithCancel(context.Background())
	signal.OnShutdown(func() error {
		log.Info("[TBot] Shutdown telegram bot")
		tgbot.StopReceivingUpdates()
		cncl()
		return nil
	})
	signal.Run(func() { instance.read(tbctx, updates, events) })
	log.Infof("[TBot] started as @%s", tgbot.Self.UserName)
	return nil
}

func (b *bot) setCommands() {
	botCommands := make([]tgbotapi.BotCommand, 0, len(b.commands))
	for cmd, c := range b.commands {
		botCommands = append(botCommands, tgbotapi.BotCommand{
			Command:     cmd,
			Description: c.Description(),
		})
	}
	_, err := b.api.Request(tgbotapi.SetMyCommandsConfig{Commands: botCommands})
	if err != nil {
		log.Errorf("[TBot] [init] setting commands failed: %s", err)
	} else {
		log.Info("[TBot] [init] setting commands: ok")
	}
}

func (b *bot) read(ctx context.Context, updates tgbotapi.UpdatesChannel, events <-chan session.Event) {
	for {
		select {
		case upd, ok := <-updates:
			if !ok {
				return
			}
			b.update(upd)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			b.notify(ev)
		case <-ctx.Done():
			return
		}
	}
}

func (b *bot) update(upd tgbotapi.Update) {
	if upd.Message == nil || upd.Message.Chat == nil {
		return
	}
	id := upd.Message.Chat.ID
	if len(b.allowed) > 0 && !b.allowed[id] {
		log.Warnf("[TBot] ignoring message from chat %d", id)
		return
	}
	b.msgUpdate(upd.Message.Text, b.chats.Chat(id))
}

func (b *bot) msgUpdate(text string, c *chat.Chat) {
	parts := strings.Fields(text)
	r := &replier{chatID: c.ID, b: b}
	if len(parts) == 0 {
		r.ReplyWithMessage("empty message")
		return
	}

	cmdName := parts[0]
	if !strings.HasPrefix(cmdName, "/") {
		r.ReplyWithMessage("not a command")
		return
	}
	// group chats address commands as /cmd@botname
	cmdName, _, _ = strings.Cut(cmdName[1:], "@")

	cmd, ok := b.commands[cmdName]
	if !ok {
		r.ReplyWithMessage("unknown command")
		return
	}
	r = &replier{chatID: c.ID, b: b, cmd: cmd}

	if cmd.IsAuthRequired() && !b.sess.IsLoggedIn() {
		r.ReplyWithMessage("Not logged in, use /login first")
		return
	}

	if cmd.PreAction(r, parts[1:], c) {
		return
	}

	if !b.spamCheck(r, c, cmd.FloodControlLevel()) {
		return
	}

	ares := cmd.Action(r, parts[1:], c)

	if ares.ResetSpamFilter() {
		c.Spam.Reset(cmd.FloodControlLevel())
	}
}

func (b *bot) spamCheck(r *replier, c *chat.Chat, l int) bool {
	if l == domain.SpamLevelNone {
		return true
	}

	wait := c.Spam.Take(l, b.now(), b.spamDurations[l])
	if wait > 0 {
		r.ReplyWithMessage(fmt.Sprintf("Try again after %s", wait.Truncate(time.Second)+time.Second))
		return false
	}
	return true
}

func (b *bot) notify(ev session.Event) {
	var msg string
	switch ev.Kind {
	case session.EventLoggedIn:
		msg = fmt.Sprintf("Gateway confirmed login of %s", ev.State.User.Name)
	case session.EventLoggedOut:
		msg = "Console logged out"
	default:
		return
	}
	for _, id := range b.chats.Watchers() {
		b.send(tgbotapi.NewMessage(id, msg))
	}
}
