// Package notify carries notification delivery. The current implementation
// records events in the process log; push delivery rides on the same
// interface when it lands.
package notify

import (
	"context"
	"log/slog"

	"github.com/Cerjho/canteen-orders/internal/domain"
)

// LogNotifier writes notification events as structured log lines. It never
// fails the calling operation.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) OrderPaid(ctx context.Context, order *domain.Order) {
	n.logger.InfoContext(ctx, "notification: order paid",
		slog.String("order_id", order.ID),
		slog.String("parent_id", order.ParentID),
		slog.Int64("amount", order.TotalAmount))
}

func (n *LogNotifier) OrderCancelled(ctx context.Context, order *domain.Order, reason string) {
	n.logger.InfoContext(ctx, "notification: order cancelled",
		slog.String("order_id", order.ID),
		slog.String("parent_id", order.ParentID),
		slog.String("reason", reason))
}

func (n *LogNotifier) WalletCredited(ctx context.Context, parentID string, amount int64) {
	n.logger.InfoContext(ctx, "notification: wallet credited",
		slog.String("parent_id", parentID),
		slog.Int64("amount", amount))
}
