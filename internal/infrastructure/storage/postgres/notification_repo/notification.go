// Package notification_repo provides the PostgreSQL notification store.
package notification_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain/notifications"
	"lotkeeper/internal/infrastructure/storage/postgres"
)

const (
	notificationsTable = "sys_notifications"
	readsTable         = "sys_notification_reads"
)

// NotificationRepo implements notifications.Repository.
type NotificationRepo struct {
	txManager *postgres.TxManager
	columns   []string
}

// NewNotificationRepo creates a new notification repository.
func NewNotificationRepo(txManager *postgres.TxManager) *NotificationRepo {
	return &NotificationRepo{
		txManager: txManager,
		columns:   postgres.ExtractDBColumns[notifications.Notification]("read_at"),
	}
}

var _ notifications.Repository = (*NotificationRepo)(nil)

// Create inserts a notification.
func (r *NotificationRepo) Create(ctx context.Context, n *notifications.Notification) error {
	sql, args, err := postgres.Builder().
		Insert(notificationsTable).
		SetMap(postgres.StructToMap(n, r.columns...)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ExistsSince reports whether an equal notification was raised since.
func (r *NotificationRepo) ExistsSince(ctx context.Context, t notifications.Type, dedupKey string, since time.Time) (bool, error) {
	sql, args, err := postgres.Builder().
		Select("1").
		Prefix("SELECT EXISTS (").
		From(notificationsTable).
		Where(squirrel.Eq{"type": t, "dedup_key": dedupKey}).
		Where(squirrel.GtOrEq{"created_at": since}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists bool
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check notification: %w", err)
	}
	return exists, nil
}

// ListForRoles returns notifications addressed to any of roles, newest first.
func (r *NotificationRepo) ListForRoles(ctx context.Context, roles []string, userID string, filter notifications.ListFilter) ([]notifications.Notification, error) {
	cols := make([]string, 0, len(r.columns)+1)
	for _, c := range r.columns {
		cols = append(cols, "n."+c)
	}
	cols = append(cols, "rd.read_at")

	q := postgres.Builder().
		Select(cols...).
		From(notificationsTable+" n").
		LeftJoin(readsTable+" rd ON rd.notification_id = n.id AND rd.user_id = ?", userID).
		Where("n.target_roles && ?", roles).
		OrderBy("n.created_at DESC", "n.id DESC")

	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"n.type": *filter.Type})
	}
	if filter.UnreadOnly {
		q = q.Where("rd.read_at IS NULL")
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := make([]notifications.Notification, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

// GetByID returns a notification without read state.
func (r *NotificationRepo) GetByID(ctx context.Context, notificationID id.ID) (*notifications.Notification, error) {
	sql, args, err := postgres.Builder().
		Select(r.columns...).
		From(notificationsTable).
		Where(squirrel.Eq{"id": notificationID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var n notifications.Notification
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &n, sql, args...); err != nil {
		return nil, postgres.MapError(err, "get notification", "notification", notificationID)
	}
	return &n, nil
}

// MarkRead records that userID read the notification. Repeated calls keep
// the first read time.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID id.ID, userID string, at time.Time) error {
	sql, args, err := postgres.Builder().
		Insert(readsTable).
		Columns("notification_id", "user_id", "read_at").
		Values(notificationID, userID, at).
		Suffix("ON CONFLICT (notification_id, user_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "mark notification read", "notification", notificationID)
	}
	return nil
}
