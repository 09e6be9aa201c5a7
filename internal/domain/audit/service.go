package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appctx "lotkeeper/internal/core/context"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain/allocation"
)

// Service provides audit logging functionality.
type Service struct {
	repo  Repository
	codec *Codec
}

// NewService creates a new audit service.
func NewService(repo Repository, codec *Codec) *Service {
	return &Service{repo: repo, codec: codec}
}

var (
	_ allocation.CommitHook  = (*Service)(nil)
	_ allocation.ReceiveHook = (*Service)(nil)
)

// Log records an audit entry. Must run inside the transaction of the
// audited change.
func (s *Service) Log(ctx context.Context, entry Entry) error {
	if u := appctx.GetUser(ctx); u != nil {
		if entry.UserID == "" {
			entry.UserID = u.UserID
		}
		if entry.UserEmail == "" {
			entry.UserEmail = u.Email
		}
	}
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if len(entry.Metadata) == 0 {
		if reqID := appctx.GetRequestID(ctx); reqID != "" {
			entry.Metadata, _ = json.Marshal(map[string]string{"request_id": reqID})
		}
	}

	s.codec.Pack(&entry)

	if err := s.repo.Create(ctx, &entry); err != nil {
		return fmt.Errorf("create audit entry: %w", err)
	}
	return nil
}

// LogChange is a convenience method for logging entity changes.
func (s *Service) LogChange(ctx context.Context, entityType string, entityID id.ID, action Action, changes any) error {
	raw, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	return s.Log(ctx, Entry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Changes:    raw,
	})
}

// LogUpdate records the fields that differ between before and after.
// Nothing is written when the states are equal.
func (s *Service) LogUpdate(ctx context.Context, entityType string, entityID id.ID, before, after map[string]any) error {
	changes := Diff(before, after)
	if len(changes) == 0 {
		return nil
	}
	return s.LogChange(ctx, entityType, entityID, ActionUpdate, changes)
}

// AfterCommit records the committed withdrawal with every lot line.
func (s *Service) AfterCommit(ctx context.Context, w *allocation.Withdrawal) error {
	return s.LogChange(ctx, EntityLotAllocation, w.ID, ActionWithdraw, map[string]any{
		"reference": w.Reference,
		"reason":    w.Reason,
		"result":    w.Result,
		"attempts":  w.Attempts,
	})
}

// AfterReceive records a received lot.
func (s *Service) AfterReceive(ctx context.Context, lot *allocation.Lot) error {
	return s.LogChange(ctx, EntityLot, lot.ID, ActionReceive, lot)
}

// History returns decompressed entries of one entity, newest first.
func (s *Service) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	entries, err := s.repo.ListByEntity(ctx, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	for i := range entries {
		if err := s.codec.Unpack(&entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}
