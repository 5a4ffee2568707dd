package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	eventsdomain "github.com/mspforge/mspforge/internal/events/domain"
	"github.com/mspforge/mspforge/internal/tenantctx"
	"github.com/mspforge/mspforge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
}

type ServiceParam struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
}

func NewService(p ServiceParam) eventsdomain.Recorder {
	return &Service{
		log:   p.Log.Named("events.service"),
		genID: p.GenID,
	}
}

// Record implements domain.Recorder.
func (s *Service) Record(ctx context.Context, tx *gorm.DB, event eventsdomain.Event) error {
	companyID, ok := tenantctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return eventsdomain.ErrInvalidCompany
	}
	if strings.TrimSpace(string(event.Type)) == "" {
		return eventsdomain.ErrInvalidEvent
	}

	payload := datatypes.JSONMap{}
	for k, v := range event.Payload {
		payload[k] = v
	}

	row := eventsdomain.LifecycleEvent{
		ID:        s.genID.Generate(),
		CompanyID: companyID,
		EventType: event.Type,
		Payload:   payload,
	}
	if key := strings.TrimSpace(event.DedupeKey); key != "" {
		row.DedupeKey = &key
	}

	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Same transition already recorded; the outbox stays append-only.
			s.log.Debug("lifecycle event deduped",
				zap.String("event_type", string(event.Type)),
				zap.Stringp("dedupe_key", row.DedupeKey),
			)
			return nil
		}
		return err
	}

	s.log.Info("lifecycle event recorded",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", row.ID.String()),
	)
	return nil
}
