package bot

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/lumi-labs/lumi-bot/internal/engine"
	"github.com/lumi-labs/lumi-bot/internal/plan"
)

func metaOf(c telebot.Context) engine.Meta {
	sender := c.Sender()
	if sender == nil {
		return engine.Meta{}
	}

	fullName := strings.TrimSpace(sender.FirstName + " " + sender.LastName)
	return engine.Meta{
		ChatID:   sender.ID,
		Username: sender.Username,
		FullName: fullName,
	}
}

func (b *Bot) handleText(c telebot.Context) error {
	return b.engine.HandleText(context.Background(), metaOf(c), c.Text())
}

func (b *Bot) handleStart(c telebot.Context) error {
	return b.engine.Start(context.Background(), metaOf(c))
}

func (b *Bot) handleAccept(c telebot.Context) error {
	return b.engine.AcceptPolicy(context.Background(), metaOf(c))
}

func (b *Bot) handlePolicy(c telebot.Context) error {
	return b.engine.Policy(context.Background(), metaOf(c))
}

func (b *Bot) handleResetPolicy(c telebot.Context) error {
	return b.engine.ResetPolicy(context.Background(), metaOf(c))
}

func (b *Bot) handleLanguage(c telebot.Context) error {
	return b.engine.ChooseLanguage(context.Background(), metaOf(c))
}

func (b *Bot) handleBuy(c telebot.Context) error {
	return b.engine.Buy(context.Background(), metaOf(c))
}

func (b *Bot) handleNewsOff(c telebot.Context) error {
	return b.engine.NewsOff(context.Background(), metaOf(c))
}

func (b *Bot) handleDiag(c telebot.Context) error {
	return b.engine.Diag(context.Background(), metaOf(c))
}

// handleCallback dispatches the two inline-button callbacks: language
// selection and offer acceptance.
func (b *Bot) handleCallback(c telebot.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}

	data := strings.TrimPrefix(strings.TrimSpace(cb.Data), "\f")
	meta := metaOf(c)
	ctx := context.Background()

	switch {
	case strings.HasPrefix(data, "lang"):
		lang := strings.TrimPrefix(data, "lang")
		lang = strings.TrimPrefix(lang, "|")
		lang = strings.TrimPrefix(lang, ":")
		if err := c.Respond(&telebot.CallbackResponse{}); err != nil {
			b.log.Warn("callback ack failed", slog.Any("error", err))
		}
		return b.engine.SetLanguage(ctx, meta, lang)

	case strings.HasPrefix(data, "offer"):
		tr := b.engine.TranslatorFor(meta.ChatID)
		if err := c.Respond(&telebot.CallbackResponse{Text: tr.T("policy_accept_toast")}); err != nil {
			b.log.Warn("callback ack failed", slog.Any("error", err))
		}
		return b.engine.AcceptPolicy(ctx, meta)

	default:
		return c.Respond(&telebot.CallbackResponse{})
	}
}

func (b *Bot) handleVoice(c telebot.Context) error {
	msg := c.Message()
	if msg == nil || msg.Voice == nil {
		return nil
	}
	return b.handleAudioFile(c, &msg.Voice.File, engine.AudioVoice, "voice.ogg")
}

func (b *Bot) handleAudio(c telebot.Context) error {
	msg := c.Message()
	if msg == nil || msg.Audio == nil {
		return nil
	}
	return b.handleAudioFile(c, &msg.Audio.File, engine.AudioVoice, "audio.mp3")
}

func (b *Bot) handleVideo(c telebot.Context) error {
	msg := c.Message()
	if msg == nil || msg.Video == nil {
		return nil
	}
	return b.handleAudioFile(c, &msg.Video.File, engine.AudioVideo, "video.mp4")
}

func (b *Bot) handleVideoNote(c telebot.Context) error {
	msg := c.Message()
	if msg == nil || msg.VideoNote == nil {
		return nil
	}
	return b.handleAudioFile(c, &msg.VideoNote.File, engine.AudioVideo, "video_note.mp4")
}

func (b *Bot) handleAudioFile(c telebot.Context, file *telebot.File, kind engine.AudioKind, filename string) error {
	rc, err := b.telebot.File(file)
	if err != nil {
		return err
	}
	defer closeQuietly(rc, b.log)

	return b.engine.HandleAudio(context.Background(), metaOf(c), kind, rc, filename)
}

func (b *Bot) handlePhoto(c telebot.Context) error {
	msg := c.Message()
	if msg == nil || msg.Photo == nil {
		return nil
	}

	rc, err := b.telebot.File(&msg.Photo.File)
	if err != nil {
		return err
	}
	defer closeQuietly(rc, b.log)

	image, err := io.ReadAll(io.LimitReader(rc, 10<<20))
	if err != nil {
		return err
	}

	return b.engine.HandlePhoto(context.Background(), metaOf(c), image, "image/jpeg")
}

func (b *Bot) handleSubs(c telebot.Context) error {
	meta := metaOf(c)
	tr := b.engine.TranslatorFor(meta.ChatID)

	if !b.admin.IsAdmin(meta.ChatID) {
		return c.Send(tr.T("grant_denied"))
	}

	activeOnly := !strings.Contains(c.Message().Payload, "all")
	return c.Send(b.admin.Overview(tr, activeOnly))
}

// handleGrant activates a time-boxed plan: /grant <id|@username> [days] [plan].
func (b *Bot) handleGrant(c telebot.Context) error {
	meta := metaOf(c)
	tr := b.engine.TranslatorFor(meta.ChatID)

	if !b.admin.IsAdmin(meta.ChatID) {
		return c.Send(tr.T("grant_denied"))
	}

	args := strings.Fields(c.Message().Payload)
	target, ok := b.resolveTarget(c, args)
	if !ok {
		return c.Send(tr.T("grant_best_failed"))
	}

	days := 30
	code := plan.Basic
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil {
			days = n
		}
	}
	if len(args) > 2 && plan.Valid(plan.Code(args[2])) {
		code = plan.Code(args[2])
	}

	if err := b.admin.Grant(context.Background(), target, days, code, "admin"); err != nil {
		return err
	}

	targetTr := b.engine.TranslatorFor(target)
	if err := b.sender.Send(context.Background(), target, targetTr.Tr("premium_granted",
		"plan", targetTr.T("plans."+string(code)+".name"),
		"days", strconv.Itoa(days),
	)); err != nil {
		b.log.Warn("grant notification failed", slog.Int64("chat_id", target), slog.Any("error", err))
	}

	return c.Send(tr.Tr("grant_best_done", "target", strconv.FormatInt(target, 10)))
}

// handleGrantBest activates a permanent best-tier plan:
// /grant_best <id|@username>, or as a reply to the target's message.
func (b *Bot) handleGrantBest(c telebot.Context) error {
	meta := metaOf(c)
	tr := b.engine.TranslatorFor(meta.ChatID)

	if !b.admin.IsAdmin(meta.ChatID) {
		return c.Send(tr.T("grant_denied"))
	}

	args := strings.Fields(c.Message().Payload)
	target, ok := b.resolveTarget(c, args)
	if !ok {
		return c.Send(tr.T("grant_best_prompt"))
	}

	if err := b.admin.GrantBest(context.Background(), target); err != nil {
		return err
	}

	targetTr := b.engine.TranslatorFor(target)
	if err := b.sender.Send(context.Background(), target, targetTr.T("grant_permanent")); err != nil {
		b.log.Warn("grant notification failed", slog.Int64("chat_id", target), slog.Any("error", err))
	}

	return c.Send(tr.Tr("grant_best_done", "target", strconv.FormatInt(target, 10)))
}

// resolveTarget extracts the target chat ID from the replied-to message, a
// numeric argument, or a known @username.
func (b *Bot) resolveTarget(c telebot.Context, args []string) (int64, bool) {
	if msg := c.Message(); msg != nil && msg.ReplyTo != nil && msg.ReplyTo.Sender != nil {
		return msg.ReplyTo.Sender.ID, true
	}

	if len(args) == 0 {
		return 0, false
	}

	if id, err := strconv.ParseInt(args[0], 10, 64); err == nil {
		return id, true
	}

	return b.admin.FindByUsername(args[0])
}

func closeQuietly(rc io.ReadCloser, log *slog.Logger) {
	if err := rc.Close(); err != nil {
		log.Warn("failed to close file stream", slog.Any("error", err))
	}
}
