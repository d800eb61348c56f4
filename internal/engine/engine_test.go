package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumi-labs/lumi-bot/internal/consent"
	"github.com/lumi-labs/lumi-bot/internal/domain"
	"github.com/lumi-labs/lumi-bot/internal/entitlement"
	apperrors "github.com/lumi-labs/lumi-bot/internal/errors"
	"github.com/lumi-labs/lumi-bot/internal/i18n"
	"github.com/lumi-labs/lumi-bot/internal/openai"
	"github.com/lumi-labs/lumi-bot/internal/plan"
	"github.com/lumi-labs/lumi-bot/internal/repository"
	"github.com/lumi-labs/lumi-bot/internal/safety"
	"github.com/lumi-labs/lumi-bot/internal/storage"
	"github.com/lumi-labs/lumi-bot/internal/support"
)

const testCatalog = `ru:
  name: "Русский"
  lyrics_prompt: "QUOTE: {fragment}"
  supportive:
    - "тёплая фраза"
`

type fakeCompleter struct {
	calls   [][]openai.Message
	replies []string
	err     error
}

func (f *fakeCompleter) Complete(_ context.Context, messages []openai.Message, _ openai.CompletionParams) (string, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) > 0 {
		reply := f.replies[0]
		f.replies = f.replies[1:]
		return reply, nil
	}
	return "reply", nil
}

type fakeSender struct {
	sent        []string
	langPrompts int
	offers      int
	plans       int
	failOn      string
}

func (f *fakeSender) Send(_ context.Context, _ int64, text string) error {
	if f.failOn != "" && strings.HasPrefix(text, f.failOn) {
		return errors.New("delivery failed")
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSender) SendLanguagePrompt(context.Context, int64, i18n.Translator) error {
	f.langPrompts++
	return nil
}

func (f *fakeSender) SendOffer(context.Context, int64, i18n.Translator) error {
	f.offers++
	return nil
}

func (f *fakeSender) SendPlans(context.Context, int64, i18n.Translator) error {
	f.plans++
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTranscriber struct {
	transcript string
	err        error
}

func (f *fakeTranscriber) Transcribe(context.Context, io.Reader, string) (string, error) {
	return f.transcript, f.err
}

type fakeDescriber struct {
	description string
	err         error
}

func (f *fakeDescriber) Describe(context.Context, string, []byte, string) (string, error) {
	return f.description, f.err
}

type fixture struct {
	engine     *Engine
	repo       *repository.Repository
	completer  *fakeCompleter
	sender     *fakeSender
	transcribe *fakeTranscriber
	describe   *fakeDescriber
}

// newFixture builds an engine over a real file-backed repository with fake
// network edges. Missing catalog keys resolve to themselves, so assertions
// compare against locale keys directly.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ru.yaml"), []byte(testCatalog), 0o600))

	catalogs, err := i18n.LoadFromDir(dir, "ru")
	require.NoError(t, err)

	log := discardLogger()
	repo := repository.New(storage.NewFileStore(filepath.Join(dir, "users.json"), log), "ru", log)
	require.NoError(t, repo.Load(context.Background()))

	completer := &fakeCompleter{}
	sender := &fakeSender{}
	transcriber := &fakeTranscriber{}
	describer := &fakeDescriber{}

	eng := New(Deps{
		Repo:       repo,
		Resolver:   entitlement.NewResolver(nil, nil, log),
		Trial:      entitlement.NewTrialTracker(3, []int{1}),
		Gate:       consent.NewGate(24*time.Hour, 2*time.Minute),
		Classifier: safety.NewClassifier(),
		Scheduler:  support.NewScheduler(),
		I18N:       catalogs,
		Completer:  completer,
		Transcribe: transcriber,
		Describe:   describer,
		Errors:     apperrors.NewHandler(log, false),
		Log:        log,
	})
	eng.SetSender(sender)

	return &fixture{
		engine:     eng,
		repo:       repo,
		completer:  completer,
		sender:     sender,
		transcribe: transcriber,
		describe:   describer,
	}
}

func (f *fixture) consented(t *testing.T, chatID int64) {
	t.Helper()

	now := time.Now().UTC()
	err := f.repo.Update(context.Background(), chatID, func(u *domain.UserRecord) error {
		u.LangConfirmed = true
		u.OfferPrompted = true
		u.PolicyAcceptedAt = &now
		return nil
	})
	require.NoError(t, err)
}

func meta(chatID int64) Meta {
	return Meta{ChatID: chatID, Username: "tester", FullName: "Test User"}
}

func TestHandleTextGatesUnknownUser(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.engine.HandleText(context.Background(), meta(1), "привет"))

	assert.Equal(t, 1, f.sender.langPrompts)
	assert.Empty(t, f.completer.calls)
	assert.Empty(t, f.sender.sent)
}

func TestHandleTextCleanFlow(t *testing.T) {
	f := newFixture(t)
	f.consented(t, 1)

	require.NoError(t, f.engine.HandleText(context.Background(), meta(1), "расскажи про море"))

	require.Len(t, f.completer.calls, 1)
	messages := f.completer.calls[0]
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, domain.RoleUser, messages[len(messages)-1].Role)
	assert.Equal(t, "расскажи про море", messages[len(messages)-1].Content)

	require.NotEmpty(t, f.sender.sent)
	assert.Equal(t, "reply", f.sender.sent[0])

	u := f.repo.Get(1)
	require.Len(t, u.History, 2)
	assert.Equal(t, "расскажи про море", u.History[0].Content)
	assert.Equal(t, "reply", u.History[1].Content)
	assert.Equal(t, 1, u.FreeUsed)
	assert.Equal(t, "tester", u.LastUsername)
}

func TestHandleTextEmptyAsksForTopic(t *testing.T) {
	f := newFixture(t)
	f.consented(t, 1)

	require.NoError(t, f.engine.HandleText(context.Background(), meta(1), "   "))

	assert.Equal(t, []string{"ask_topic"}, f.sender.sent)
	assert.Empty(t, f.completer.calls)
	assert.Zero(t, f.repo.Get(1).FreeUsed)
}

func TestHandleTextSensitiveDeflects(t *testing.T) {
	f := newFixture(t)
	f.consented(t, 1)

	require.NoError(t, f.engine.HandleText(context.Background(), meta(1), "хочу покончить с собой"))

	assert.Equal(t, []string{"sensitive"}, f.sender.sent)
	assert.Empty(t, f.completer.calls)

	u := f.repo.Get(1)
	assert.Empty(t, u.History)
	assert.Zero(t, u.FreeUsed)
	assert.Zero(t, u.AbuseStrikes)
}

func TestHandleTextAbuseEscalation(t *testing.T) {
	f := newFixture(t)
	f.consented(t, 1)
	ctx := context.Background()

	require.NoError(t, f.engine.HandleText(ctx, meta(1), "ты тупая сука"))
	assert.Equal(t, []string{"abuse_first"}, f.sender.sent)
	assert.Equal(t, 1, f.repo.Get(1).AbuseStrikes)

	// a sensitive message in between leaves the strike untouched
	require.NoError(t, f.engine.HandleText(ctx, meta(1), "хочу покончить с собой"))
	assert.Equal(t, 1, f.repo.Get(1).AbuseStrikes)

	require.NoError(t, f.engine.HandleText(ctx, meta(1), "люми ебаная дура"))
	assert.Equal(t, "abuse_final", f.sender.sent[len(f.sender.sent)-1])
	assert.Zero(t, f.repo.Get(1).AbuseStrikes)

	assert.Empty(t, f.completer.calls)
}

func TestHandleTextVentAttachesNote(t *testing.T) {
	f := newFixture(t)
	f.consented(t, 1)
	ctx := context.Background()

	// one prior exchange so the prompt carries history
	require.NoError(t, f.engine.HandleText(ctx, meta(1), "расскажи про море"))

	text := "блядь, как же всё достало"
	require.NoError(t, f.engine.HandleText(ctx, meta(1), text))

	require.Len(t, f.completer.calls, 2)
	messages := f.completer.calls[1]
	require.Len(t, messages, 6)
	// persona, style, vent note, history, then the user turn
	assert.Equal(t, "persona.free", messages[0].Content)
	assert.Equal(t, "style.free", messages[1].Content)
	assert.Equal(t, "system", messages[2].Role)
	assert.Equal(t, "vent_note", messages[2].Content)
	assert.Equal(t, "расскажи про море", messages[3].Content)
	assert.Equal(t, domain.RoleAssistant, messages[4].Role)
	assert.Equal(t, text, messages[5].Content)

	u := f.repo.Get(1)
	require.Len(t, u.History, 4)
	assert.Equal(t, text, u.History[2].Content)
	assert.Zero(t, u.AbuseStrikes)
}

func TestHandleTextTrialCeiling(t *testing.T) {
	f := newFixture(t)
	f.consented(t, 1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.engine.HandleText(ctx, meta(1), "сообщение"))
	}
	require.Len(t, f.completer.calls, 3)

	// reminder fired when one message remained
	assert.Contains(t, f.sender.sent, "trial_left")

	require.NoError(t, f.engine.HandleText(ctx, meta(1), "ещё одно"))

	assert.Len(t, f.completer.calls, 3)
	assert.Equal(t, "free_end", f.sender.sent[len(f.sender.sent)-1])
	assert.Equal(t, 1, f.sender.plans)
	// the rejected message never reaches history
	assert.Len(t, f.repo.Get(1).History, 6)
}

func TestHandleTextPremiumSkipsTrial(t *testing.T) {
	f := newFixture(t)
	f.consented(t, 1)
	ctx := context.Background()

	require.NoError(t, f.repo.Update(ctx, 1, func(u *domain.UserRecord) error {
		u.PermanentPlan = string(plan.Warm)
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, f.engine.HandleText(ctx, meta(1), "сообщение"))
	}

	assert.Len(t, f.completer.calls, 5)
	assert.Zero(t, f.repo.Get(1).FreeUsed)
}

func TestHandleTextSupportCadence(t *testing.T) {
	f := newFixture(t)
	f.consented(t, 1)
	ctx := context.Background()

	require.NoError(t, f.repo.Update(ctx, 1, func(u *domain.UserRecord) error {
		u.PermanentPlan = string(plan.Warm)
		return nil
	}))

	require.NoError(t, f.engine.HandleText(ctx, meta(1), "привет"))

	var supportive bool
	for _, s := range f.sender.sent {
		if strings.HasPrefix(s, "supportive_intro") {
			supportive = true
		}
	}
	assert.True(t, supportive)
	require.NotNil(t, f.repo.Get(1).LastSupportAt)

	// within the cadence window no second supportive message goes out
	sentBefore := len(f.sender.sent)
	require.NoError(t, f.engine.HandleText(ctx, meta(1), "ещё привет"))
	for _, s := range f.sender.sent[sentBefore:] {
		assert.False(t, strings.HasPrefix(s, "supportive_intro"))
	}
}

func TestHandleTextSupportDeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.consented(t, 1)
	ctx := context.Background()

	require.NoError(t, f.repo.Update(ctx, 1, func(u *domain.UserRecord) error {
		u.PermanentPlan = string(plan.Warm)
		return nil
	}))

	f.sender.failOn = "supportive_intro"
	require.NoError(t, f.engine.HandleText(ctx, meta(1), "привет"))

	assert.Contains(t, f.sender.sent, "support_error")
	// a failed delivery must not advance the cadence timestamp
	assert.Nil(t, f.repo.Get(1).LastSupportAt)
}

func TestHandleTextLyricsMode(t *testing.T) {
	f := newFixture(t)
	f.consented(t, 1)
	ctx := context.Background()

	require.NoError(t, f.engine.HandleText(ctx, meta(1), "давай продолжи песню за меня"))
	assert.Equal(t, []string{"lyrics_ask"}, f.sender.sent)
	assert.True(t, f.repo.Get(1).AwaitingLyrics)
	assert.Empty(t, f.completer.calls)

	require.NoError(t, f.engine.HandleText(ctx, meta(1), "ночь, улица, фонарь"))

	require.Len(t, f.completer.calls, 1)
	messages := f.completer.calls[0]
	assert.Equal(t, "QUOTE: ночь, улица, фонарь", messages[len(messages)-1].Content)

	u := f.repo.Get(1)
	assert.False(t, u.AwaitingLyrics)
	require.Len(t, u.History, 2)
	assert.Equal(t, "[LYRICS] ночь, улица, фонарь", u.History[0].Content)
}

func TestHandleTextOptOut(t *testing.T) {
	f := newFixture(t)
	f.consented(t, 1)
	ctx := context.Background()

	require.NoError(t, f.engine.HandleText(ctx, meta(1), "Стоп"))
	assert.Equal(t, []string{"news_off_done"}, f.sender.sent)
	assert.True(t, f.repo.Get(1).NewsOptOut)

	require.NoError(t, f.engine.HandleText(ctx, meta(1), "stop"))
	assert.Equal(t, "news_off_already", f.sender.sent[len(f.sender.sent)-1])
}

func TestHandleTextCompletionFailure(t *testing.T) {
	f := newFixture(t)
	f.consented(t, 1)

	f.completer.err = errors.New("api down")
	require.NoError(t, f.engine.HandleText(context.Background(), meta(1), "привет"))

	assert.Equal(t, "completion_failed", f.sender.sent[len(f.sender.sent)-1])
	// the failed exchange is not recorded
	assert.Empty(t, f.repo.Get(1).History)
}

func TestCommandsFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// /start for a brand new user asks for a language
	require.NoError(t, f.engine.Start(ctx, meta(1)))
	assert.Equal(t, 1, f.sender.langPrompts)

	// selecting a language confirms it and shows the offer in the same turn
	require.NoError(t, f.engine.SetLanguage(ctx, meta(1), "ru"))
	assert.Equal(t, "language_confirm", f.sender.sent[len(f.sender.sent)-1])
	assert.Equal(t, 1, f.sender.offers)

	require.NoError(t, f.engine.AcceptPolicy(ctx, meta(1)))
	assert.Equal(t, "thank_you", f.sender.sent[len(f.sender.sent)-1])

	// an accepted user re-picking a language gets only the confirmation
	require.NoError(t, f.engine.SetLanguage(ctx, meta(1), "ru"))
	assert.Equal(t, "language_confirm", f.sender.sent[len(f.sender.sent)-1])
	assert.Equal(t, 1, f.sender.offers)

	// accepted users get a short welcome-back instead of the offer
	require.NoError(t, f.engine.Start(ctx, meta(1)))
	assert.Equal(t, "policy_again", f.sender.sent[len(f.sender.sent)-1])
	assert.Equal(t, 1, f.sender.offers)

	require.NoError(t, f.engine.ResetPolicy(ctx, meta(1)))
	assert.Equal(t, "policy_reset", f.sender.sent[len(f.sender.sent)-1])
	require.NoError(t, f.engine.Start(ctx, meta(1)))
	assert.Equal(t, 2, f.sender.offers)
}

func TestHandleTextCompletionFailureAfterTrialCharge(t *testing.T) {
	f := newFixture(t)
	f.consented(t, 1)

	f.completer.err = errors.New("api down")
	require.NoError(t, f.engine.HandleText(context.Background(), meta(1), "привет"))

	// the trial message is charged even though the model call failed
	assert.Equal(t, 1, f.repo.Get(1).FreeUsed)
}
