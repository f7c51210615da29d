package auditlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"feedmill/internal/store"
	"feedmill/internal/syncer"
	"feedmill/pkg/models"
)

type Auditlog struct {
	persister syncer.Persister
	log       *zap.Logger
}

type Auditable interface {
	CreateLogView() models.AuditLog
}

func NewAuditLog(persister syncer.Persister, log *zap.Logger) *Auditlog {
	return &Auditlog{persister: persister, log: log}
}

// Log records what happened to a resource. Failures are logged, never
// surfaced: an audit miss must not fail the originating action.
func (a *Auditlog) Log(ctx context.Context, action string, data interface{}, item Auditable) {
	entry := item.CreateLogView()
	entry.Action = action
	entry.CreatedAt = time.Now().UTC()

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			a.log.Warn("unable to encode audit payload",
				zap.String("resource_id", entry.ResourceID), zap.Error(err))
		} else {
			entry.DataRaw = string(raw)
		}
	}

	id := uuid.NewString()
	a.persister.Persist(ctx, store.CollectionAuditLog, id, entry)
}
