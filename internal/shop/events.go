package shop

import (
	"strconv"
	"strings"
)

// EventKind tags a decoded transition event.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventPickGame
	EventPickPack
	EventNickname
	EventPickAsset
	EventBackToGames
	EventBackToPacks
	EventCheckPayment
)

// Event is a buyer input decoded once at the transport boundary. Exactly the
// fields implied by Kind are populated.
type Event struct {
	Kind      EventKind
	Game      string
	Pack      string
	Asset     string
	Nickname  string
	OrderID   string
	InvoiceID int64
}

// Callback-data prefixes shared with the keyboard renderer.
const (
	callbackGame  = "game:"
	callbackPack  = "pkg:"
	callbackAsset = "asset:"
	callbackCheck = "check:"
	callbackBack  = "back:"
)

// GameCallback encodes the callback data for picking a game.
func GameCallback(game string) string { return callbackGame + game }

// PackCallback encodes the callback data for picking a pack.
func PackCallback(pack string) string { return callbackPack + pack }

// AssetCallback encodes the callback data for picking a settlement asset.
func AssetCallback(asset string) string { return callbackAsset + asset }

// CheckCallback encodes the callback data for an "I have paid" press.
func CheckCallback(orderID string, invoiceID int64) string {
	return callbackCheck + orderID + ":" + strconv.FormatInt(invoiceID, 10)
}

// BackToGamesCallback and BackToPacksCallback encode the back buttons.
const (
	BackToGamesCallback = callbackBack + "games"
	BackToPacksCallback = callbackBack + "packages"
)

// ParseCallback decodes a callback-data string into a tagged event. Anything
// malformed decodes to EventUnknown, which every state ignores.
func ParseCallback(data string) Event {
	switch {
	case strings.HasPrefix(data, callbackGame):
		return Event{Kind: EventPickGame, Game: data[len(callbackGame):]}
	case strings.HasPrefix(data, callbackPack):
		return Event{Kind: EventPickPack, Pack: data[len(callbackPack):]}
	case strings.HasPrefix(data, callbackAsset):
		return Event{Kind: EventPickAsset, Asset: data[len(callbackAsset):]}
	case data == BackToGamesCallback:
		return Event{Kind: EventBackToGames}
	case data == BackToPacksCallback:
		return Event{Kind: EventBackToPacks}
	case strings.HasPrefix(data, callbackCheck):
		rest := data[len(callbackCheck):]
		sep := strings.LastIndex(rest, ":")
		if sep <= 0 {
			return Event{}
		}
		invoiceID, err := strconv.ParseInt(rest[sep+1:], 10, 64)
		if err != nil {
			return Event{}
		}
		return Event{Kind: EventCheckPayment, OrderID: rest[:sep], InvoiceID: invoiceID}
	}
	return Event{}
}

// TextEvent wraps free-text input as a nickname event; only the
// entering-nickname state consumes it.
func TextEvent(text string) Event {
	return Event{Kind: EventNickname, Nickname: strings.TrimSpace(text)}
}
