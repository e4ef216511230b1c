package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/bunnybrand/My-botinok/internal/catalog"
	"github.com/bunnybrand/My-botinok/internal/shop"
)

const qrSize = 256

// replyChattables renders a flow reply into the ordered list of bot API
// sends. Alerts are not rendered here; they ride on the callback answer.
func replyChattables(chatID int64, r shop.Reply, logf func(string, ...any)) []tgbotapi.Chattable {
	var out []tgbotapi.Chattable

	if r.Text != "" {
		msg := tgbotapi.NewMessage(chatID, r.Text)
		if kb, ok := replyKeyboard(r); ok {
			msg.ReplyMarkup = kb
		}
		out = append(out, msg)
	}

	if r.Order != nil {
		if photo, ok := invoiceQR(chatID, r.Order.PayURL, logf); ok {
			out = append(out, photo)
		}
	}

	return out
}

func replyKeyboard(r shop.Reply) (tgbotapi.InlineKeyboardMarkup, bool) {
	switch {
	case r.Order != nil:
		return orderKeyboard(r.Order.PayURL, r.Order.ID, r.Order.InvoiceID), true
	case len(r.GameChoices) > 0:
		return gameKeyboard(r.GameChoices), true
	case len(r.PackChoices) > 0:
		return packKeyboard(r.PackChoices), true
	case len(r.AssetChoices) > 0:
		return assetKeyboard(r.AssetChoices), true
	}
	return tgbotapi.InlineKeyboardMarkup{}, false
}

func gameKeyboard(games []string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(games))
	for _, game := range games {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(game, shop.GameCallback(game)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func packKeyboard(packs []catalog.Entry) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(packs)+1)
	for _, p := range packs {
		label := fmt.Sprintf("%s — %g USD", p.Pack, p.Price)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, shop.PackCallback(p.Pack)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("« Back", shop.BackToGamesCallback),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func assetKeyboard(assets []string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(assets)+1)
	for _, asset := range assets {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(asset, shop.AssetCallback(asset)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("« Back", shop.BackToPacksCallback),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func orderKeyboard(payURL, orderID string, invoiceID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Pay", payURL),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("I have paid", shop.CheckCallback(orderID, invoiceID)),
		),
	)
}

// invoiceQR renders the pay link as a QR photo. Encoding failures are
// logged and the photo is skipped; the URL button still works.
func invoiceQR(chatID int64, payURL string, logf func(string, ...any)) (tgbotapi.Chattable, bool) {
	if payURL == "" {
		return nil, false
	}
	png, err := qrcode.Encode(payURL, qrcode.Medium, qrSize)
	if err != nil {
		logf("encode invoice qr: %v", err)
		return nil, false
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "invoice.png", Bytes: png})
	photo.Caption = "Scan to pay"
	return photo, true
}
