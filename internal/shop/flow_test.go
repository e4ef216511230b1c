package shop

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bunnybrand/My-botinok/internal/catalog"
	"github.com/bunnybrand/My-botinok/internal/cryptopay"
	"github.com/bunnybrand/My-botinok/internal/orders"
)

type stubGateway struct {
	inv  cryptopay.Invoice
	ok   bool
	fail int // fail this many calls before succeeding

	calls       int
	lastAsset   string
	lastAmount  float64
	lastDesc    string
	lastPayload string
}

func (g *stubGateway) CreateInvoice(ctx context.Context, asset string, amount float64, description, payload string) (cryptopay.Invoice, bool) {
	g.calls++
	g.lastAsset, g.lastAmount, g.lastDesc, g.lastPayload = asset, amount, description, payload
	if g.fail > 0 {
		g.fail--
		return cryptopay.Invoice{}, false
	}
	return g.inv, g.ok
}

type spyNotifier struct {
	notified []orders.Order
}

func (n *spyNotifier) NotifyOrder(o orders.Order) {
	n.notified = append(n.notified, o)
}

func testFlow(t *testing.T) (*Flow, *catalog.InMemoryCatalog, *stubGateway, *orders.InMemoryStore, *spyNotifier) {
	t.Helper()

	cat := catalog.NewInMemoryCatalog(catalog.Sample())
	gw := &stubGateway{
		inv: cryptopay.Invoice{ID: 42, Status: cryptopay.InvoiceStatusActive, PayURL: "https://pay.example/42"},
		ok:  true,
	}
	store := orders.NewInMemoryStore()
	notifier := &spyNotifier{}

	var ids int
	flow := NewFlow(cat, gw, store, FlowConfig{
		Notifier: notifier,
		NewID: func() string {
			ids++
			return fmt.Sprintf("order-%d", ids)
		},
		Now:  func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) },
		Logf: t.Logf,
	})
	return flow, cat, gw, store, notifier
}

func advanceToAsset(t *testing.T, flow *Flow, buyer Buyer) {
	t.Helper()
	ctx := context.Background()

	if _, err := flow.Start(ctx, buyer); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := flow.Handle(ctx, buyer, Event{Kind: EventPickGame, Game: "Genshin Impact"}); err != nil {
		t.Fatalf("pick game: %v", err)
	}
	if _, err := flow.Handle(ctx, buyer, Event{Kind: EventPickPack, Pack: "60 Genesis Crystals"}); err != nil {
		t.Fatalf("pick pack: %v", err)
	}
	if _, err := flow.Handle(ctx, buyer, TextEvent("Player123")); err != nil {
		t.Fatalf("nickname: %v", err)
	}
}

func TestFlow_HappyPathCreatesPendingOrder(t *testing.T) {
	flow, _, gw, store, notifier := testFlow(t)
	buyer := Buyer{ID: 1001, Name: "alice"}
	ctx := context.Background()

	advanceToAsset(t, flow, buyer)

	reply, err := flow.Handle(ctx, buyer, Event{Kind: EventPickAsset, Asset: "USDT"})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if reply.Order == nil {
		t.Fatalf("expected committed order in reply: %+v", reply)
	}

	o, err := store.Get(ctx, reply.Order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if o.Status != orders.StatusPending {
		t.Fatalf("expected pending, got %s", o.Status)
	}
	if o.Price != 1.1 {
		t.Fatalf("expected price 1.1, got %v", o.Price)
	}
	if o.InvoiceID != 42 || o.PayURL != "https://pay.example/42" {
		t.Fatalf("unexpected invoice binding: %+v", o)
	}
	if o.Nickname != "Player123" || o.Asset != "USDT" {
		t.Fatalf("unexpected order fields: %+v", o)
	}

	if gw.lastAmount != 1.1 || gw.lastPayload != o.ID {
		t.Fatalf("unexpected gateway call: amount=%v payload=%q", gw.lastAmount, gw.lastPayload)
	}

	if flow.Sessions().Len() != 0 {
		t.Fatalf("session must be cleared after commit")
	}
	if len(notifier.notified) != 1 || notifier.notified[0].ID != o.ID {
		t.Fatalf("expected one commit notification, got %+v", notifier.notified)
	}
}

func TestFlow_DuplicateCommitTriggerCreatesNoSecondOrder(t *testing.T) {
	flow, _, gw, _, _ := testFlow(t)
	buyer := Buyer{ID: 1001}
	ctx := context.Background()

	advanceToAsset(t, flow, buyer)

	if _, err := flow.Handle(ctx, buyer, Event{Kind: EventPickAsset, Asset: "USDT"}); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	// A second press finds a brand-new session at the initial state.
	reply, err := flow.Handle(ctx, buyer, Event{Kind: EventPickAsset, Asset: "USDT"})
	if err != nil {
		t.Fatalf("second press: %v", err)
	}
	if !reply.Empty() {
		t.Fatalf("expected duplicate trigger to be ignored, got %+v", reply)
	}
	if gw.calls != 1 {
		t.Fatalf("expected one gateway call, got %d", gw.calls)
	}
}

func TestFlow_PriceReadAtCommitNotSelection(t *testing.T) {
	flow, cat, _, store, _ := testFlow(t)
	buyer := Buyer{ID: 1001}
	ctx := context.Background()

	advanceToAsset(t, flow, buyer)

	// Reprice between selection and commit.
	cat.Remove("Genshin Impact", "60 Genesis Crystals")
	repriced := catalog.NewInMemoryCatalog(map[string][]catalog.Entry{
		"Genshin Impact": {{Pack: "60 Genesis Crystals", Price: 2.2}},
	})
	flow.catalog = repriced

	reply, err := flow.Handle(ctx, buyer, Event{Kind: EventPickAsset, Asset: "USDT"})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if reply.Order == nil {
		t.Fatalf("expected committed order")
	}

	o, err := store.Get(ctx, reply.Order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if o.Price != 2.2 {
		t.Fatalf("price must be re-read at commit: got %v, want 2.2", o.Price)
	}
}

func TestFlow_VanishedPairAbortsWithoutOrder(t *testing.T) {
	flow, cat, gw, store, _ := testFlow(t)
	buyer := Buyer{ID: 1001}
	ctx := context.Background()

	advanceToAsset(t, flow, buyer)
	cat.Remove("Genshin Impact", "60 Genesis Crystals")

	reply, err := flow.Handle(ctx, buyer, Event{Kind: EventPickAsset, Asset: "USDT"})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if reply.Alert == "" {
		t.Fatalf("expected pricing alert")
	}
	if len(reply.GameChoices) == 0 {
		t.Fatalf("expected game menu after reset")
	}
	if gw.calls != 0 {
		t.Fatalf("gateway must not be called on pricing failure")
	}
	if _, err := store.Get(ctx, "order-1"); err == nil {
		t.Fatalf("no order row may be created")
	}
	if flow.sessions.Ensure(buyer.ID).State != StateChoosingGame {
		t.Fatalf("session must reset to choosing game")
	}
}

func TestFlow_ShortNicknameNeverAdvances(t *testing.T) {
	flow, _, _, _, _ := testFlow(t)
	buyer := Buyer{ID: 1001}
	ctx := context.Background()

	if _, err := flow.Start(ctx, buyer); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := flow.Handle(ctx, buyer, Event{Kind: EventPickGame, Game: "Genshin Impact"}); err != nil {
		t.Fatalf("pick game: %v", err)
	}
	if _, err := flow.Handle(ctx, buyer, Event{Kind: EventPickPack, Pack: "60 Genesis Crystals"}); err != nil {
		t.Fatalf("pick pack: %v", err)
	}

	for _, nick := range []string{"", " ", "x", " x "} {
		reply, err := flow.Handle(ctx, buyer, TextEvent(nick))
		if err != nil {
			t.Fatalf("nickname %q: %v", nick, err)
		}
		if len(reply.AssetChoices) != 0 {
			t.Fatalf("nickname %q must not advance the flow", nick)
		}
		if flow.sessions.Ensure(buyer.ID).State != StateEnteringNickname {
			t.Fatalf("nickname %q advanced the state", nick)
		}
		if reply.Text == "" {
			t.Fatalf("expected a re-prompt for %q", nick)
		}
	}
}

func TestFlow_GatewayFailureKeepsAssetStateForRetry(t *testing.T) {
	flow, _, gw, store, _ := testFlow(t)
	buyer := Buyer{ID: 1001}
	ctx := context.Background()

	advanceToAsset(t, flow, buyer)
	gw.fail = 1

	reply, err := flow.Handle(ctx, buyer, Event{Kind: EventPickAsset, Asset: "TON"})
	if err != nil {
		t.Fatalf("failed commit: %v", err)
	}
	if reply.Alert == "" || reply.Order != nil {
		t.Fatalf("expected transient alert without order, got %+v", reply)
	}
	if flow.sessions.Ensure(buyer.ID).State != StateChoosingAsset {
		t.Fatalf("session must stay in choosing asset")
	}

	// The buyer retries the same step and succeeds.
	reply, err = flow.Handle(ctx, buyer, Event{Kind: EventPickAsset, Asset: "TON"})
	if err != nil {
		t.Fatalf("retry commit: %v", err)
	}
	if reply.Order == nil {
		t.Fatalf("expected order after retry")
	}
	if _, err := store.Get(ctx, reply.Order.ID); err != nil {
		t.Fatalf("order not persisted: %v", err)
	}
}

func TestFlow_BackTransitions(t *testing.T) {
	flow, _, _, _, _ := testFlow(t)
	buyer := Buyer{ID: 1001}
	ctx := context.Background()

	if _, err := flow.Start(ctx, buyer); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := flow.Handle(ctx, buyer, Event{Kind: EventPickGame, Game: "Genshin Impact"}); err != nil {
		t.Fatalf("pick game: %v", err)
	}

	reply, err := flow.Handle(ctx, buyer, Event{Kind: EventBackToGames})
	if err != nil {
		t.Fatalf("back to games: %v", err)
	}
	if len(reply.GameChoices) == 0 {
		t.Fatalf("expected game menu")
	}
	sess := flow.sessions.Ensure(buyer.ID)
	if sess.State != StateChoosingGame || sess.Game != "" {
		t.Fatalf("back must discard the recorded game: %+v", sess)
	}

	advanceToAsset(t, flow, buyer)
	reply, err = flow.Handle(ctx, buyer, Event{Kind: EventBackToPacks})
	if err != nil {
		t.Fatalf("back to packs: %v", err)
	}
	if len(reply.PackChoices) == 0 {
		t.Fatalf("expected pack menu")
	}
	if flow.sessions.Ensure(buyer.ID).State != StateChoosingPack {
		t.Fatalf("expected choosing pack state")
	}
}

func TestFlow_UnrecognizedInputIgnored(t *testing.T) {
	flow, _, _, _, _ := testFlow(t)
	buyer := Buyer{ID: 1001}
	ctx := context.Background()

	if _, err := flow.Start(ctx, buyer); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Inputs that do not belong to choosing_game.
	for _, ev := range []Event{
		{Kind: EventPickAsset, Asset: "USDT"},
		{Kind: EventBackToPacks},
		{Kind: EventNickname, Nickname: "Player123"},
		{Kind: EventPickPack, Pack: "60 Genesis Crystals"},
		{},
	} {
		reply, err := flow.Handle(ctx, buyer, ev)
		if err != nil {
			t.Fatalf("event %+v: %v", ev, err)
		}
		if !reply.Empty() {
			t.Fatalf("event %+v must be ignored, got %+v", ev, reply)
		}
		if flow.sessions.Ensure(buyer.ID).State != StateChoosingGame {
			t.Fatalf("event %+v must not transition", ev)
		}
	}
}

func TestFlow_UnknownGameIgnored(t *testing.T) {
	flow, _, _, _, _ := testFlow(t)
	buyer := Buyer{ID: 1001}
	ctx := context.Background()

	reply, err := flow.Handle(ctx, buyer, Event{Kind: EventPickGame, Game: "No Such Game"})
	if err != nil {
		t.Fatalf("pick unknown game: %v", err)
	}
	if !reply.Empty() {
		t.Fatalf("unknown game must be ignored, got %+v", reply)
	}
}

func TestFlow_UnsupportedAssetIgnored(t *testing.T) {
	flow, _, gw, _, _ := testFlow(t)
	buyer := Buyer{ID: 1001}
	ctx := context.Background()

	advanceToAsset(t, flow, buyer)

	reply, err := flow.Handle(ctx, buyer, Event{Kind: EventPickAsset, Asset: "DOGE"})
	if err != nil {
		t.Fatalf("unsupported asset: %v", err)
	}
	if !reply.Empty() || gw.calls != 0 {
		t.Fatalf("unsupported asset must be ignored")
	}
}
