// Package telegram is the bot-facing transport: inbound commands
// (subscribe, metrics) and outbound message delivery.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"vaultbot/internal/storage"
	"vaultbot/pkg/logx"
)

const (
	welcomeNewText      = "Welcome! You are now subscribed to rebalance notifications."
	welcomeExistingText = "You are already subscribed. Sit tight!"
	fallbackReplyText   = "I'm sorry, I don't understand that. Send /start to subscribe."
	metricsButtonText   = "📊 Metrics"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

// Subscribers is the storage slice the bot needs for /start.
type Subscribers interface {
	AddSubscriber(ctx context.Context, chatID int64) (storage.Subscriber, bool, error)
}

// SummarySource serves the metrics text. Its error is advisory; the
// text is always renderable.
type SummarySource interface {
	Get(ctx context.Context) (string, error)
}

type Adapter struct {
	bot     *tele.Bot
	subs    Subscribers
	summary SummarySource
	log     logx.Logger

	runMu   sync.Mutex
	running bool
	runWG   sync.WaitGroup
}

func New(cfg Config, subs Subscribers, summary SummarySource, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{bot: b, subs: subs, summary: summary, log: log}, nil
}

// Start registers handlers and begins long polling. It returns
// immediately; polling stops when ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return
	}
	a.running = true

	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	btnMetrics := menu.Text(metricsButtonText)
	menu.Reply(menu.Row(btnMetrics))

	a.bot.Handle("/start", func(c tele.Context) error {
		return a.handleStart(ctx, c, menu)
	})
	a.bot.Handle("/metrics", func(c tele.Context) error {
		return a.handleMetrics(ctx, c)
	})
	a.bot.Handle(&btnMetrics, func(c tele.Context) error {
		return a.handleMetrics(ctx, c)
	})
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		return c.Send(fallbackReplyText)
	})

	a.runWG.Add(2)
	go func() {
		defer a.runWG.Done()
		<-ctx.Done()
		a.bot.Stop()
	}()
	go func() {
		defer a.runWG.Done()
		a.log.Info("telegram polling started")
		a.bot.Start()
		a.log.Info("telegram polling stopped")
	}()
}

// Wait blocks until the polling loop has fully exited.
func (a *Adapter) Wait() { a.runWG.Wait() }

func (a *Adapter) handleStart(ctx context.Context, c tele.Context, menu *tele.ReplyMarkup) error {
	chatID := c.Chat().ID
	_, created, err := a.subs.AddSubscriber(ctx, chatID)
	if err != nil {
		a.log.Error("subscribe failed", logx.Int64("chat_id", chatID), logx.Err(err))
		return c.Send("Something went wrong, please try again later.")
	}
	if created {
		a.log.Info("new subscriber", logx.Int64("chat_id", chatID))
		return c.Send(welcomeNewText, menu)
	}
	a.log.Debug("existing subscriber", logx.Int64("chat_id", chatID))
	return c.Send(welcomeExistingText, menu)
}

func (a *Adapter) handleMetrics(ctx context.Context, c tele.Context) error {
	text, err := a.summary.Get(ctx)
	if err != nil {
		// The cache already substituted stale or fallback text.
		a.log.Debug("metrics served degraded", logx.Int64("chat_id", c.Chat().ID), logx.Err(err))
	}
	return c.Send(text, tele.ModeHTML)
}

// SendText delivers one message to one chat. telebot has no per-call
// context, so cancellation is only observed between calls.
func (a *Adapter) SendText(ctx context.Context, chatID int64, text string, mode string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := &tele.SendOptions{DisableWebPagePreview: true}
	if mode != "" {
		opts.ParseMode = mode
	}
	_, err := a.bot.Send(tele.ChatID(chatID), text, opts)
	return err
}
