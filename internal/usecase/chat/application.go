package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// startApplication moves a NORMAL session into collection and asks for the first field.
func (uc *ChatUsecase) startApplication(ctx context.Context, session *entity.ChatSession, text string) (*turnReply, error) {
	app, err := uc.newDraft(ctx, session.ID, uc.extractor.Extract(text, ""))
	if err != nil {
		return nil, err
	}

	session, err = uc.transition(ctx, session, entity.PhaseCollectingApplication)
	if err != nil {
		return nil, err
	}

	ctxzap.Info(ctx, "application started", zap.String("application_id", app.ID))

	lead := fmt.Sprintf("Great, I can help you apply to %s!", uc.cfg.UniversityName)
	if noted := filledFields(app, uc.cfg.RequiredFields); len(noted) > 0 {
		lead += " I've noted your " + joinFields(noted) + "."
	}
	return uc.progress(ctx, session, app, lead)
}

// continueApplication feeds a reply to field extraction.
func (uc *ChatUsecase) continueApplication(ctx context.Context, session *entity.ChatSession, text string) (*turnReply, error) {
	app, err := uc.applicationRepo.GetLatest(ctx, session.ID)
	switch {
	case errors.Is(err, entity.ErrApplicationNotFound) || (err == nil && app.Status != entity.ApplicationStatusCollecting):
		ctxzap.Warn(ctx, "collecting phase without a draft application, starting a new one")
		app, err = uc.newDraft(ctx, session.ID, nil)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("get application: %w", err)
	}

	if uc.extractor.IsCancel(text) {
		app.Status = entity.ApplicationStatusCancelled
		if _, err := uc.applicationRepo.Update(ctx, app); err != nil {
			return nil, fmt.Errorf("cancel application: %w", err)
		}
		session, err = uc.transition(ctx, session, entity.PhaseNormal)
		if err != nil {
			return nil, err
		}

		ctxzap.Info(ctx, "application cancelled by user", zap.String("application_id", app.ID))

		return &turnReply{
			text:        "No problem, I've cancelled your application. Feel free to ask me anything else about the university.",
			phase:       session.Phase,
			application: app,
			outcome:     "application_cancelled",
		}, nil
	}

	missing := app.Missing(uc.cfg.RequiredFields)
	if len(missing) == 0 {
		return uc.completeApplication(ctx, session, app)
	}

	expecting := missing[0]
	newly := mergeFields(app, uc.extractor.Extract(text, expecting), uc.cfg.RequiredFields)

	if len(newly) == 0 {
		return uc.progress(ctx, session, app, retryLead(expecting))
	}

	app, err = uc.applicationRepo.Update(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}

	ctxzap.Debug(ctx, "application fields captured", zap.Int("count", len(newly)))

	return uc.progress(ctx, session, app, "Thanks, I've noted your "+joinFields(newly)+".")
}

// progress asks for the next missing field or completes the application.
func (uc *ChatUsecase) progress(ctx context.Context, session *entity.ChatSession, app *entity.Application, lead string) (*turnReply, error) {
	missing := app.Missing(uc.cfg.RequiredFields)
	if len(missing) == 0 {
		return uc.completeApplication(ctx, session, app)
	}

	return &turnReply{
		text:        strings.TrimSpace(lead + " " + uc.fieldPrompt(missing[0])),
		phase:       session.Phase,
		application: app,
		outcome:     "application",
	}, nil
}

func (uc *ChatUsecase) completeApplication(ctx context.Context, session *entity.ChatSession, app *entity.Application) (*turnReply, error) {
	now := time.Now().UTC()
	pending := entity.ReviewStatusPending
	app.Status = entity.ApplicationStatusComplete
	app.ReviewStatus = &pending
	app.CompletedAt = &now

	app, err := uc.applicationRepo.Update(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("complete application: %w", err)
	}

	session, err = uc.transition(ctx, session, entity.PhaseComplete)
	if err != nil {
		return nil, err
	}

	ctxzap.Info(ctx, "application completed", zap.String("application_id", app.ID))

	var b strings.Builder
	b.WriteString("Thank you! Your application has been submitted with these details:\n")
	for _, f := range uc.cfg.RequiredFields {
		fmt.Fprintf(&b, "- %s: %s\n", fieldLabel(f), app.Fields[f])
	}
	b.WriteString("The admissions office will review it and contact you soon. Is there anything else I can help you with?")

	return &turnReply{
		text:        b.String(),
		phase:       session.Phase,
		application: app,
		outcome:     "application_complete",
	}, nil
}

func (uc *ChatUsecase) newDraft(ctx context.Context, sessionID string, captured map[entity.ApplicationField]string) (*entity.Application, error) {
	app := &entity.Application{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Fields:    map[entity.ApplicationField]string{},
		Status:    entity.ApplicationStatusCollecting,
	}
	mergeFields(app, captured, uc.cfg.RequiredFields)

	app, err := uc.applicationRepo.Create(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}
	return app, nil
}

// cancelDraft marks a collecting application of the session as cancelled.
func (uc *ChatUsecase) cancelDraft(ctx context.Context, sessionID string) error {
	app, err := uc.applicationRepo.GetLatest(ctx, sessionID)
	if errors.Is(err, entity.ErrApplicationNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get application: %w", err)
	}
	if app.Status != entity.ApplicationStatusCollecting {
		return nil
	}

	app.Status = entity.ApplicationStatusCancelled
	if _, err := uc.applicationRepo.Update(ctx, app); err != nil {
		return fmt.Errorf("cancel application: %w", err)
	}
	return nil
}

func (uc *ChatUsecase) fieldPrompt(f entity.ApplicationField) string {
	if p := uc.cfg.FieldPrompts[f]; p != "" {
		return p
	}
	return fmt.Sprintf("Could you tell me your %s?", fieldLabel(f))
}

// mergeFields fills fields that are still empty and returns them in required order.
func mergeFields(app *entity.Application, captured map[entity.ApplicationField]string, required []entity.ApplicationField) []entity.ApplicationField {
	var newly []entity.ApplicationField
	for _, f := range required {
		v := strings.TrimSpace(captured[f])
		if v == "" || app.Fields[f] != "" {
			continue
		}
		app.Fields[f] = v
		newly = append(newly, f)
	}
	return newly
}

func filledFields(app *entity.Application, required []entity.ApplicationField) []entity.ApplicationField {
	var filled []entity.ApplicationField
	for _, f := range required {
		if app.Fields[f] != "" {
			filled = append(filled, f)
		}
	}
	return filled
}

func retryLead(expecting entity.ApplicationField) string {
	switch expecting {
	case entity.FieldEmail:
		return "That doesn't look like a valid email address."
	case entity.FieldPhone:
		return "That doesn't look like a valid phone number."
	default:
		return "Sorry, I didn't catch that."
	}
}

func fieldLabel(f entity.ApplicationField) string {
	switch f {
	case entity.FieldName:
		return "name"
	case entity.FieldEmail:
		return "email address"
	case entity.FieldPhone:
		return "phone number"
	default:
		return string(f)
	}
}

func joinFields(fields []entity.ApplicationField) string {
	labels := make([]string, 0, len(fields))
	for _, f := range fields {
		labels = append(labels, fieldLabel(f))
	}
	if len(labels) <= 1 {
		return strings.Join(labels, "")
	}
	return strings.Join(labels[:len(labels)-1], ", ") + " and " + labels[len(labels)-1]
}
