package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	telebot "gopkg.in/telebot.v3"

	"github.com/lumi-labs/lumi-bot/internal/i18n"
	"github.com/lumi-labs/lumi-bot/internal/payments"
	"github.com/lumi-labs/lumi-bot/internal/plan"
)

// messageChunkSize keeps each Telegram message under the API's 4096-char
// cap with headroom for HTML tags.
const messageChunkSize = 3500

// telebotSender implements engine.Sender over telebot. It owns the inline
// keyboards and the chunking of long texts, keeping the engine free of
// transport concerns.
type telebotSender struct {
	bot      *telebot.Bot
	i18n     *i18n.Manager
	payments *payments.CryptoPay
	log      *slog.Logger
}

func newTelebotSender(bot *telebot.Bot, manager *i18n.Manager, pay *payments.CryptoPay, log *slog.Logger) *telebotSender {
	return &telebotSender{
		bot:      bot,
		i18n:     manager,
		payments: pay,
		log:      log,
	}
}

// Send delivers a plain text message.
func (s *telebotSender) Send(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitChunks(text, messageChunkSize) {
		if _, err := s.bot.Send(&telebot.User{ID: chatID}, chunk); err != nil {
			return err
		}
	}
	return nil
}

// SendLanguagePrompt shows one button per known language catalog.
func (s *telebotSender) SendLanguagePrompt(ctx context.Context, chatID int64, tr i18n.Translator) error {
	markup := &telebot.ReplyMarkup{}

	var rows []telebot.Row
	for _, lang := range s.i18n.Languages() {
		name := s.i18n.Translator(lang).T("name")
		rows = append(rows, markup.Row(markup.Data(name, "lang", lang)))
	}
	markup.Inline(rows...)

	_, err := s.bot.Send(&telebot.User{ID: chatID}, tr.T("language_prompt"), markup)
	return err
}

// SendOffer sends the greeting and the full offer text, the last chunk
// carrying the accept button.
func (s *telebotSender) SendOffer(ctx context.Context, chatID int64, tr i18n.Translator) error {
	if _, err := s.bot.Send(&telebot.User{ID: chatID}, tr.T("greeting")); err != nil {
		return err
	}

	chunks := splitChunks(tr.T("policy"), messageChunkSize)
	for i, chunk := range chunks {
		var opts []any
		opts = append(opts, telebot.ModeHTML)

		if i == len(chunks)-1 {
			markup := &telebot.ReplyMarkup{}
			markup.Inline(markup.Row(markup.Data(tr.T("policy_accept"), "offer", "accept")))
			opts = append(opts, markup)
		}

		if _, err := s.bot.Send(&telebot.User{ID: chatID}, chunk, opts...); err != nil {
			return err
		}
	}

	return nil
}

// SendPlans lists the paid tiers with perks and payment links.
func (s *telebotSender) SendPlans(ctx context.Context, chatID int64, tr i18n.Translator) error {
	var b strings.Builder
	b.WriteString(tr.T("plan_intro"))
	b.WriteString("\n")

	markup := &telebot.ReplyMarkup{}
	var rows []telebot.Row

	for _, code := range plan.Paid() {
		def := plan.Behavior(code)
		name := tr.T("plans." + string(code) + ".name")

		fmt.Fprintf(&b, "\n<b>%s</b> — %d ₽ / %d дн.\n", name, def.PriceRUB, def.Days)
		for _, perk := range tr.Pool("plans." + string(code) + ".perks") {
			fmt.Fprintf(&b, "• %s\n", perk)
		}

		invoice, err := s.payments.InvoiceURL(ctx, chatID, code)
		if err != nil {
			s.log.Warn("invoice unavailable", slog.String("plan", string(code)), slog.Any("error", err))
			continue
		}
		label := fmt.Sprintf("%s — %d ₽", name, def.PriceRUB)
		rows = append(rows, markup.Row(markup.URL(label, invoice.URL)))
	}
	markup.Inline(rows...)

	_, err := s.bot.Send(&telebot.User{ID: chatID}, b.String(), telebot.ModeHTML, markup)
	return err
}

// splitChunks breaks text on paragraph boundaries where possible, falling
// back to hard cuts for oversized paragraphs.
func splitChunks(text string, size int) []string {
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	for _, para := range strings.Split(text, "\n\n") {
		for len(para) > size {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			cut := size
			for cut > 0 && !utf8.RuneStart(para[cut]) {
				cut--
			}
			chunks = append(chunks, para[:cut])
			para = para[cut:]
		}

		if current.Len() > 0 && current.Len()+len(para)+2 > size {
			chunks = append(chunks, current.String())
			current.Reset()
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}
