// Package telegram is the transport layer: it polls the bot API, decodes
// updates into flow events, and renders replies back as messages.
package telegram

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bunnybrand/My-botinok/internal/observability"
	"github.com/bunnybrand/My-botinok/internal/shop"
)

const pollTimeoutSeconds = 30

// API is the slice of *tgbotapi.BotAPI the bot depends on.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Config carries the bot's collaborators. Metrics, Limiter and Logf may
// be nil.
type Config struct {
	Flow       *shop.Flow
	Reconciler *shop.Reconciler
	Metrics    *observability.Metrics
	Limiter    *SendLimiter
	Logf       func(string, ...any)
}

// Bot routes Telegram updates through the order flow and the
// payment reconciler.
type Bot struct {
	api        API
	flow       *shop.Flow
	reconciler *shop.Reconciler
	metrics    *observability.Metrics
	limiter    *SendLimiter
	dispatcher *Dispatcher
	logf       func(string, ...any)
}

// New constructs a Bot over the given API client.
func New(api API, cfg Config) *Bot {
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}
	b := &Bot{
		api:        api,
		flow:       cfg.Flow,
		reconciler: cfg.Reconciler,
		metrics:    cfg.Metrics,
		limiter:    cfg.Limiter,
		logf:       logf,
	}
	b.dispatcher = NewDispatcher(func(u tgbotapi.Update) {
		b.handleUpdate(context.Background(), u)
	}, logf)
	return b
}

// Run polls for updates until the context is cancelled, then drains
// in-flight updates and returns.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.dispatcher.Close()
			return nil
		case update, ok := <-updates:
			if !ok {
				b.dispatcher.Close()
				return nil
			}
			key, ok := dispatchKey(update)
			if !ok {
				continue
			}
			b.dispatcher.Dispatch(key, update)
		}
	}
}

// dispatchKey picks the serialization key for an update. Sessions are
// keyed by buyer, so updates are serialized per buyer too: the same
// buyer pressing buttons in two chats must not get two concurrent
// handlers over one session. Chat id is the fallback for updates that
// carry no sender.
func dispatchKey(u tgbotapi.Update) (int64, bool) {
	switch {
	case u.Message != nil:
		if u.Message.From != nil {
			return u.Message.From.ID, true
		}
		return u.Message.Chat.ID, true
	case u.CallbackQuery != nil:
		if u.CallbackQuery.From != nil {
			return u.CallbackQuery.From.ID, true
		}
		if u.CallbackQuery.Message != nil {
			return u.CallbackQuery.Message.Chat.ID, true
		}
	}
	return 0, false
}

func (b *Bot) handleUpdate(ctx context.Context, u tgbotapi.Update) {
	switch {
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	buyer := buyerFrom(msg.From)

	if msg.IsCommand() {
		if msg.Command() != "start" {
			return
		}
		span := b.metrics.Start("update.start")
		reply, err := b.flow.Start(ctx, buyer)
		span.End(err)
		if err != nil {
			b.logf("start for buyer %d: %v", buyer.ID, err)
			b.sendText(ctx, msg.Chat.ID, "Something went wrong. Try /start again.")
			return
		}
		b.present(ctx, msg.Chat.ID, reply)
		return
	}

	span := b.metrics.Start("update.text")
	reply, err := b.flow.Handle(ctx, buyer, shop.TextEvent(msg.Text))
	span.End(err)
	if err != nil {
		b.logf("text from buyer %d: %v", buyer.ID, err)
		b.sendText(ctx, msg.Chat.ID, "Something went wrong. Try again.")
		return
	}
	b.present(ctx, msg.Chat.ID, reply)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		b.answer(ctx, cq.ID, "")
		return
	}
	chatID := cq.Message.Chat.ID
	buyer := buyerFrom(cq.From)
	ev := shop.ParseCallback(cq.Data)

	if ev.Kind == shop.EventCheckPayment {
		b.checkPayment(ctx, chatID, cq.ID, ev)
		return
	}

	span := b.metrics.Start("update.callback")
	reply, err := b.flow.Handle(ctx, buyer, ev)
	span.End(err)
	if err != nil {
		b.logf("callback from buyer %d: %v", buyer.ID, err)
		b.answer(ctx, cq.ID, "Something went wrong. Try again.")
		return
	}
	b.answer(ctx, cq.ID, reply.Alert)
	b.present(ctx, chatID, reply)
}

// checkPayment maps a reconciliation outcome onto buyer-visible wording.
func (b *Bot) checkPayment(ctx context.Context, chatID int64, callbackID string, ev shop.Event) {
	span := b.metrics.Start("reconcile.check")
	outcome, err := b.reconciler.Reconcile(ctx, ev.OrderID, ev.InvoiceID)
	span.End(err)
	if err != nil {
		b.logf("reconcile order %s: %v", ev.OrderID, err)
		b.answer(ctx, callbackID, "Could not verify the payment. Try again later.")
		return
	}

	switch outcome {
	case shop.OutcomePaid:
		b.answer(ctx, callbackID, "")
		b.sendText(ctx, chatID, fmt.Sprintf("Payment received! Order #%s is paid. Thank you!", ev.OrderID))
	case shop.OutcomeAwaitingPayment:
		b.answer(ctx, callbackID, "Payment not received yet.")
	case shop.OutcomeInvoiceInvalid:
		b.answer(ctx, callbackID, "")
		b.sendText(ctx, chatID, fmt.Sprintf("Invoice for order #%s is no longer valid. Start a new order with /start.", ev.OrderID))
	default:
		b.answer(ctx, callbackID, "Could not verify the payment. Try again later.")
	}
}

func (b *Bot) present(ctx context.Context, chatID int64, reply shop.Reply) {
	if reply.Empty() {
		return
	}
	for _, c := range replyChattables(chatID, reply, b.logf) {
		b.send(ctx, c)
	}
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) {
	b.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) {
	if err := b.limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := b.api.Send(c); err != nil {
		b.logf("send: %v", err)
	}
}

// answer acknowledges the callback query; a non-empty text shows as an
// alert popup.
func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	if err := b.limiter.Wait(ctx); err != nil {
		return
	}
	cb := tgbotapi.NewCallback(callbackID, text)
	if text != "" {
		cb = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := b.api.Request(cb); err != nil {
		b.logf("answer callback: %v", err)
	}
}

func buyerFrom(u *tgbotapi.User) shop.Buyer {
	if u == nil {
		return shop.Buyer{}
	}
	name := u.UserName
	if name == "" {
		name = u.FirstName
	}
	return shop.Buyer{ID: u.ID, Name: name}
}
