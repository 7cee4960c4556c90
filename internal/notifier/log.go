package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/partyfleet/controller/internal/types"
)

// logNotifier logs joins via zap. It is the default backend
// (Config.NotifierBackend == "log").
type logNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) Notifier {
	return &logNotifier{logger: logger.Named("notifier")}
}

func (n *logNotifier) NotifyJoined(_ context.Context, clusterID types.ClusterID, user types.User) {
	n.logger.Info("user joined", clusterID.ZapField(), user.Name.ZapField(), zap.Int("port", user.Port))
}
