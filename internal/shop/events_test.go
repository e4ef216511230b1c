package shop

import "testing"

func TestParseCallback(t *testing.T) {
	cases := []struct {
		data string
		want Event
	}{
		{"game:Genshin Impact", Event{Kind: EventPickGame, Game: "Genshin Impact"}},
		{"pkg:60 Genesis Crystals", Event{Kind: EventPickPack, Pack: "60 Genesis Crystals"}},
		{"asset:USDT", Event{Kind: EventPickAsset, Asset: "USDT"}},
		{"back:games", Event{Kind: EventBackToGames}},
		{"back:packages", Event{Kind: EventBackToPacks}},
		{"check:order-1:42", Event{Kind: EventCheckPayment, OrderID: "order-1", InvoiceID: 42}},
		{"check:order-1:not-a-number", Event{}},
		{"check:42", Event{}},
		{"back:nowhere", Event{}},
		{"something else", Event{}},
		{"", Event{}},
	}

	for _, tc := range cases {
		if got := ParseCallback(tc.data); got != tc.want {
			t.Fatalf("ParseCallback(%q) = %+v, want %+v", tc.data, got, tc.want)
		}
	}
}

func TestCallbackRoundTrip(t *testing.T) {
	if got := ParseCallback(GameCallback("World of Warcraft")); got.Game != "World of Warcraft" {
		t.Fatalf("game round trip: %+v", got)
	}
	if got := ParseCallback(PackCallback("Gold 100k (EU)")); got.Pack != "Gold 100k (EU)" {
		t.Fatalf("pack round trip: %+v", got)
	}
	if got := ParseCallback(AssetCallback("TON")); got.Asset != "TON" {
		t.Fatalf("asset round trip: %+v", got)
	}

	got := ParseCallback(CheckCallback("ab:cd", 7))
	if got.Kind != EventCheckPayment || got.OrderID != "ab:cd" || got.InvoiceID != 7 {
		t.Fatalf("check round trip with colon in order id: %+v", got)
	}
}

func TestTextEventTrims(t *testing.T) {
	ev := TextEvent("  Player123  ")
	if ev.Kind != EventNickname || ev.Nickname != "Player123" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
