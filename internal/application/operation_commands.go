package application

import (
	"context"
	"fmt"
	"time"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/domain"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ApplyOperationCommand struct {
	SessionID domain.SessionID
	Type      string
	Position  int
	Text      string
	Length    int
	Version   int
	AuthorID  domain.ParticipantID
}

type ApplyOperationResult struct {
	Operation domain.TextOperation
	Content   domain.DocumentContent
	Version   int
}

func (cmd ApplyOperationCommand) operation() (domain.TextOperation, error) {
	typ, err := domain.ParseOperationType(cmd.Type)
	if err != nil {
		return domain.TextOperation{}, err
	}
	switch typ {
	case domain.OperationInsert:
		return domain.NewInsert(cmd.Position, cmd.Text, cmd.Version, cmd.AuthorID)
	case domain.OperationDelete:
		return domain.NewDelete(cmd.Position, cmd.Length, cmd.Version, cmd.AuthorID)
	default:
		return domain.TextOperation{}, fmt.Errorf("%w: unknown operation type %q", domain.ErrInvalidOperation, cmd.Type)
	}
}

func (s *Service) ApplyOperation(ctx context.Context, cmd ApplyOperationCommand) (ApplyOperationResult, error) {
	ctx, span := otel.Tracer(observability.TracerName).Start(ctx, "application.ApplyOperation")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", cmd.SessionID.String()),
		attribute.String("operation.type", cmd.Type),
		attribute.Int("operation.version", cmd.Version),
	)

	op, err := cmd.operation()
	if err != nil {
		return ApplyOperationResult{}, err
	}

	start := time.Now()
	var res ApplyOperationResult
	err = s.mutate(ctx, cmd.SessionID, func(session *domain.EditSession) error {
		applied, err := session.ApplyOperation(op, s.transformer)
		if err != nil {
			return err
		}
		res = ApplyOperationResult{Operation: applied, Content: session.Content(), Version: session.Version()}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		observability.GetLogger(ctx).Warn("operation rejected",
			zap.String("session_id", cmd.SessionID.String()),
			zap.String("author_id", cmd.AuthorID.String()),
			zap.String("operation", op.String()),
			zap.Error(err),
		)
		return ApplyOperationResult{}, err
	}

	observability.OperationsAppliedTotal.WithLabelValues(string(op.Type())).Inc()
	observability.OperationApplyDuration.Observe(time.Since(start).Seconds())
	observability.GetLogger(ctx).Debug("operation applied",
		zap.String("session_id", cmd.SessionID.String()),
		zap.String("operation", res.Operation.String()),
		zap.Int("version", res.Version),
	)
	return res, nil
}
