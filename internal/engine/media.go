package engine

import (
	"context"
	"io"

	"github.com/lumi-labs/lumi-bot/internal/consent"
	"github.com/lumi-labs/lumi-bot/internal/domain"
)

// AudioKind separates the failure wording for the two audio sources.
type AudioKind string

const (
	AudioVoice AudioKind = "voice"
	AudioVideo AudioKind = "video"
)

// HandleAudio transcribes a voice or video message and feeds the transcript
// through the text pipeline. The user first sees what the bot heard, so a
// bad transcription is correctable.
func (e *Engine) HandleAudio(ctx context.Context, meta Meta, kind AudioKind, audio io.Reader, filename string) error {
	lang, ready, err := e.admit(ctx, meta)
	if err != nil || !ready {
		return err
	}
	tr := e.translator(lang)

	transcript, err := e.transcribe.Transcribe(ctx, audio, filename)
	if err != nil || transcript == "" {
		if err != nil {
			// log and report; the reply wording is media-specific
			_, _ = e.errs.Handle(ctx, err)
		}
		failKey := "voice_failed"
		if kind == AudioVideo {
			failKey = "video_failed"
		}
		return e.sender.Send(ctx, meta.ChatID, tr.T(failKey))
	}

	echoKey := "voice_prompt"
	if kind == AudioVideo {
		echoKey = "video_prompt"
	}
	if err := e.sender.Send(ctx, meta.ChatID, tr.Tr(echoKey, "text", transcript)); err != nil {
		return err
	}

	return e.HandleText(ctx, meta, transcript)
}

// HandlePhoto runs the vision model over an image and answers with a
// photo-grounded completion.
func (e *Engine) HandlePhoto(ctx context.Context, meta Meta, image []byte, mimeType string) error {
	lang, ready, err := e.admit(ctx, meta)
	if err != nil || !ready {
		return err
	}
	tr := e.translator(lang)

	description, err := e.describe.Describe(ctx, tr.T("vision_prompt"), image, mimeType)
	if err != nil || description == "" {
		if err != nil {
			_, _ = e.errs.Handle(ctx, err)
		}
		return e.sender.Send(ctx, meta.ChatID, tr.T("photo_failed"))
	}

	if err := e.sender.Send(ctx, meta.ChatID, tr.Tr("photo_prompt", "description", description)); err != nil {
		return err
	}

	return e.HandleText(ctx, meta, tr.Tr("photo_model", "description", description))
}

// admit runs the consent gate once for a media update, answering the gate's
// prompts itself. ready is true only when the message may proceed.
func (e *Engine) admit(ctx context.Context, meta Meta) (lang string, ready bool, err error) {
	var decision consent.Decision

	err = e.repo.Update(ctx, meta.ChatID, func(u *domain.UserRecord) error {
		e.touch(u, meta)
		lang = u.Language
		decision = e.gate.Admit(u)
		return nil
	})
	if err != nil {
		return "", false, err
	}

	if decision == consent.Ready {
		return lang, true, nil
	}

	_, err = e.answerGate(ctx, meta.ChatID, turn{decision: decision}, e.translator(lang))
	return lang, false, err
}
