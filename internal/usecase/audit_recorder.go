package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/riskibarqy/castaway-league/internal/domain/audit"
	"github.com/riskibarqy/castaway-league/internal/domain/notification"
	idgen "github.com/riskibarqy/castaway-league/internal/platform/id"
	"github.com/riskibarqy/castaway-league/internal/platform/logging"
)

// auditRecorder writes audit entries after a commit. A failed write is a
// partial failure: it is logged and never returned to the caller.
type auditRecorder struct {
	repo   audit.Repository
	idGen  idgen.Generator
	logger *logging.Logger
	now    func() time.Time
}

func newAuditRecorder(repo audit.Repository, idGen idgen.Generator, logger *logging.Logger) *auditRecorder {
	return &auditRecorder{repo: repo, idGen: idGen, logger: logger, now: time.Now}
}

func (r *auditRecorder) record(ctx context.Context, actorID, action, targetType, targetID string, before, after any) {
	if r == nil || r.repo == nil {
		return
	}
	entry, err := buildAuditEntry(r.idGen, r.now().UTC(), actorID, action, targetType, targetID, before, after)
	if err == nil {
		err = r.repo.Append(ctx, entry)
	}
	if err != nil {
		r.logger.WarnContext(ctx, "audit entry write failed after commit",
			"action", action,
			"target_type", targetType,
			"target_id", targetID,
			"error", err,
		)
	}
}

func buildAuditEntry(
	idGen idgen.Generator,
	at time.Time,
	actorID, action, targetType, targetID string,
	before, after any,
) (audit.Entry, error) {
	entryID, err := idGen.NewID()
	if err != nil {
		return audit.Entry{}, fmt.Errorf("generate audit id: %w", err)
	}
	beforeJSON, err := snapshot(before)
	if err != nil {
		return audit.Entry{}, fmt.Errorf("encode before snapshot: %w", err)
	}
	afterJSON, err := snapshot(after)
	if err != nil {
		return audit.Entry{}, fmt.Errorf("encode after snapshot: %w", err)
	}
	return audit.Entry{
		ID:         entryID,
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Before:     beforeJSON,
		After:      afterJSON,
		CreatedAt:  at,
	}, nil
}

func snapshot(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return sonic.Marshal(v)
}

func newOutboxMessage(
	messageID string,
	kind notification.Kind,
	recipient, subject string,
	payload map[string]any,
	now time.Time,
) notification.Message {
	return notification.Message{
		ID:            messageID,
		Kind:          kind,
		RecipientID:   recipient,
		Subject:       subject,
		Payload:       payload,
		Status:        notification.StatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
}
