// Package shop holds the order flow state machine and the payment
// reconciliation engine, the part of the bot with real invariants.
package shop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/bunnybrand/My-botinok/internal/catalog"
	"github.com/bunnybrand/My-botinok/internal/cryptopay"
	"github.com/bunnybrand/My-botinok/internal/orders"
)

// Buyer identifies the requester of the current interaction.
type Buyer struct {
	ID   int64
	Name string
}

// InvoiceCreator is the gateway surface the flow needs at commit time.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, asset string, amount float64, description, payload string) (cryptopay.Invoice, bool)
}

// Notifier receives order lifecycle events (operator feed).
type Notifier interface {
	NotifyOrder(o orders.Order)
}

// Reply is the semantic response to one buyer input. The transport renders
// it; exact wording and keyboard layout are presentation concerns. A zero
// Reply means the input was ignored.
type Reply struct {
	Text         string
	Alert        string // transient popup instead of (or alongside) a message
	GameChoices  []string
	PackChoices  []catalog.Entry
	AssetChoices []string
	Order        *orders.Order // set on commit: summary, pay link, check button
}

// Empty reports whether there is nothing to present.
func (r Reply) Empty() bool {
	return r.Text == "" && r.Alert == "" && r.Order == nil &&
		len(r.GameChoices) == 0 && len(r.PackChoices) == 0 && len(r.AssetChoices) == 0
}

// FlowConfig tunes a Flow. Zero values get sane defaults.
type FlowConfig struct {
	Assets   []string
	Notifier Notifier
	NewID    func() string
	Now      func() time.Time
	Logf     func(format string, args ...any)
}

// Flow drives a single buyer through the ordered selection steps and commits
// the resulting order.
type Flow struct {
	catalog  catalog.Catalog
	gateway  InvoiceCreator
	store    orders.Store
	sessions *SessionStore
	notifier Notifier
	assets   []string
	newID    func() string
	now      func() time.Time
	logf     func(format string, args ...any)
}

// NewFlow constructs a Flow over the catalog, gateway and order store.
func NewFlow(cat catalog.Catalog, gateway InvoiceCreator, store orders.Store, cfg FlowConfig) *Flow {
	assets := cfg.Assets
	if len(assets) == 0 {
		assets = []string{"USDT", "TON"}
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Flow{
		catalog:  cat,
		gateway:  gateway,
		store:    store,
		sessions: NewSessionStore(),
		notifier: cfg.Notifier,
		assets:   assets,
		newID:    newID,
		now:      now,
		logf:     logf,
	}
}

// Sessions exposes the registry (for testing/inspection).
func (f *Flow) Sessions() *SessionStore { return f.sessions }

// Start resets the buyer's session and presents the game menu.
func (f *Flow) Start(ctx context.Context, buyer Buyer) (Reply, error) {
	f.sessions.Reset(buyer.ID)
	games, err := f.catalog.Games(ctx)
	if err != nil {
		return Reply{}, fmt.Errorf("list games: %w", err)
	}
	return Reply{Text: "Hi! Pick a game to buy for:", GameChoices: games}, nil
}

// Handle applies one decoded event to the buyer's session. Unrecognized input
// for the current state yields an empty reply and no transition.
func (f *Flow) Handle(ctx context.Context, buyer Buyer, ev Event) (Reply, error) {
	sess := f.sessions.Ensure(buyer.ID)

	switch ev.Kind {
	case EventPickGame:
		return f.pickGame(ctx, sess, ev.Game)
	case EventBackToGames:
		if sess.State != StateChoosingPack {
			return Reply{}, nil
		}
		sess.Game, sess.Pack = "", ""
		sess.State = StateChoosingGame
		games, err := f.catalog.Games(ctx)
		if err != nil {
			return Reply{}, fmt.Errorf("list games: %w", err)
		}
		return Reply{Text: "Pick a game to buy for:", GameChoices: games}, nil
	case EventPickPack:
		if sess.State != StateChoosingPack {
			return Reply{}, nil
		}
		return f.pickPack(ctx, sess, ev.Pack)
	case EventNickname:
		if sess.State != StateEnteringNickname {
			return Reply{}, nil
		}
		if len(ev.Nickname) <= 1 {
			return Reply{Text: "Send the in-game nickname or ID the order should be delivered to."}, nil
		}
		sess.Nickname = ev.Nickname
		sess.State = StateChoosingAsset
		return Reply{Text: "Pick the crypto asset to pay with:", AssetChoices: f.assets}, nil
	case EventBackToPacks:
		if sess.State != StateChoosingAsset {
			return Reply{}, nil
		}
		sess.Pack = ""
		sess.State = StateChoosingPack
		return f.packMenu(ctx, sess)
	case EventPickAsset:
		if sess.State != StateChoosingAsset || !f.supportedAsset(ev.Asset) {
			return Reply{}, nil
		}
		return f.commit(ctx, buyer, sess, ev.Asset)
	}

	return Reply{}, nil
}

// pickGame starts a pack selection for a valid game. A game pick is accepted
// from any state, so a stale menu never strands the buyer.
func (f *Flow) pickGame(ctx context.Context, sess *Session, game string) (Reply, error) {
	packs, err := f.catalog.Packs(ctx, game)
	if err != nil {
		return Reply{}, fmt.Errorf("list packs for %q: %w", game, err)
	}
	if len(packs) == 0 {
		return Reply{}, nil
	}
	sess.Game = game
	sess.Pack = ""
	sess.State = StateChoosingPack
	return Reply{
		Text:        fmt.Sprintf("Game: %s\nPick a pack:", game),
		PackChoices: packs,
	}, nil
}

func (f *Flow) pickPack(ctx context.Context, sess *Session, pack string) (Reply, error) {
	_, err := f.catalog.Price(ctx, sess.Game, pack)
	if errors.Is(err, catalog.ErrNotListed) {
		return Reply{}, nil
	}
	if err != nil {
		return Reply{}, fmt.Errorf("resolve %q/%q: %w", sess.Game, pack, err)
	}
	sess.Pack = pack
	sess.State = StateEnteringNickname
	return Reply{Text: "Send the in-game nickname or ID the order should be delivered to."}, nil
}

func (f *Flow) packMenu(ctx context.Context, sess *Session) (Reply, error) {
	packs, err := f.catalog.Packs(ctx, sess.Game)
	if err != nil {
		return Reply{}, fmt.Errorf("list packs for %q: %w", sess.Game, err)
	}
	return Reply{
		Text:        fmt.Sprintf("Game: %s\nPick a pack:", sess.Game),
		PackChoices: packs,
	}, nil
}

// commit turns the completed session into a durable order. The price is
// re-read from the catalog here; the session never carries one, so a stale or
// manipulated earlier quote can never reach the gateway.
func (f *Flow) commit(ctx context.Context, buyer Buyer, sess *Session, asset string) (Reply, error) {
	price, err := f.catalog.Price(ctx, sess.Game, sess.Pack)
	if errors.Is(err, catalog.ErrNotListed) {
		f.logf("commit for buyer %d: %s/%s vanished from catalog", buyer.ID, sess.Game, sess.Pack)
		f.sessions.Reset(buyer.ID)
		games, gamesErr := f.catalog.Games(ctx)
		if gamesErr != nil {
			f.logf("list games after pricing failure: %v", gamesErr)
		}
		return Reply{
			Alert:       "That pack is no longer available, sorry. Pick again.",
			Text:        "Pick a game to buy for:",
			GameChoices: games,
		}, nil
	}
	if err != nil {
		return Reply{}, fmt.Errorf("resolve price: %w", err)
	}

	orderID := f.newID()
	description := fmt.Sprintf("%s - %s (nick: %s)", sess.Game, sess.Pack, sess.Nickname)

	inv, ok := f.gateway.CreateInvoice(ctx, asset, price, description, orderID)
	if !ok {
		// Session stays in choosing_asset so the buyer can retry.
		return Reply{Alert: "Could not create the invoice. Try again."}, nil
	}

	o := orders.Order{
		ID:        orderID,
		BuyerID:   buyer.ID,
		BuyerName: buyer.Name,
		Game:      sess.Game,
		Pack:      sess.Pack,
		Price:     price,
		Asset:     asset,
		Nickname:  sess.Nickname,
		CreatedAt: f.now().UTC(),
		Status:    orders.StatusPending,
		InvoiceID: inv.ID,
		PayURL:    inv.PayURL,
	}
	if err := f.store.Insert(ctx, o); err != nil {
		f.logf("insert order %s: %v", orderID, err)
		return Reply{Alert: "Something went wrong. Try again."}, nil
	}

	// Clear before presenting: a duplicate trigger finds no session to commit.
	f.sessions.Clear(buyer.ID)
	if f.notifier != nil {
		f.notifier.NotifyOrder(o)
	}

	return Reply{
		Text: fmt.Sprintf("Order #%s\nGame: %s\nPack: %s\nNickname: %s\nDue: %g %s",
			o.ID, o.Game, o.Pack, o.Nickname, o.Price, o.Asset),
		Order: &o,
	}, nil
}

func (f *Flow) supportedAsset(asset string) bool {
	for _, a := range f.assets {
		if a == asset {
			return true
		}
	}
	return false
}
