package types

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClusterPrefix is prepended to every generated cluster name before it is
// handed to the provisioner.
const ClusterPrefix = "party-cluster-"

// ErrEmptyID is returned when a caller supplies a blank identifier.
var ErrEmptyID = errors.New("id cannot be empty")

// ClusterID is a typed wrapper for a cluster's identity within the durable
// mapping. It is opaque to callers outside this package.
type ClusterID string

// NewClusterID validates and wraps a raw cluster identifier.
func NewClusterID(id string) (ClusterID, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", ErrEmptyID
	}
	return ClusterID(trimmed), nil
}

// GenerateClusterName produces a name unique within this process, per
// spec.md §4.1's naming rule ("a random integer rendered as a string
// suffices"). A UUID gives practically-guaranteed uniqueness; the
// provisioner remains responsible for rejecting any collision.
func GenerateClusterName() string {
	return ClusterPrefix + uuid.NewString()
}

func (c ClusterID) String() string {
	return string(c)
}

func (c ClusterID) IsValid() bool {
	return c != ""
}

func (c ClusterID) ZapField() zap.Field {
	if !c.IsValid() {
		return zap.Skip()
	}
	return zap.String("clusterID", string(c))
}

// UserName is a typed wrapper for a joining user's display name.
type UserName string

// NewUserName validates and wraps a raw username.
func NewUserName(name string) (UserName, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrEmptyID
	}
	return UserName(trimmed), nil
}

func (u UserName) String() string {
	return string(u)
}

func (u UserName) ZapField() zap.Field {
	if u == "" {
		return zap.Skip()
	}
	return zap.String("user", string(u))
}
