// Package store persists saved workflow versions.
//
// A version is a titled snapshot of the persisted graph format produced by
// convert.ToPersisted. Stores are keyed by application: every version
// belongs to exactly one app, and listings are scoped to it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dshills/flowstudio-go/graph/convert"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested version does not exist.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by any operation on a closed store.
var ErrClosed = errors.New("store is closed")

// ErrInvalidVersion is returned when a version cannot be saved as given.
var ErrInvalidVersion = errors.New("invalid version")

// Version is one saved revision of an application's workflow.
type Version struct {
	ID          string                 `json:"id"`
	AppID       string                 `json:"appId"`
	Title       string                 `json:"title"`
	Graph       convert.PersistedGraph `json:"graph"`
	IsPublished bool                   `json:"isPublished"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// Store persists workflow versions.
//
// SaveVersion assigns an ID and creation time when they are empty and
// returns the stored record. Saving an existing ID replaces that version.
// ListVersions returns newest first; a limit <= 0 returns every version.
//
// Implementations must be safe for concurrent use.
type Store interface {
	SaveVersion(ctx context.Context, v Version) (Version, error)
	LoadVersion(ctx context.Context, appID, id string) (Version, error)
	LatestVersion(ctx context.Context, appID string) (Version, error)
	ListVersions(ctx context.Context, appID string, limit int) ([]Version, error)
	DeleteVersion(ctx context.Context, appID, id string) error
	Close() error
}

// prepare validates v and fills in generated fields.
func prepare(v Version, now func() time.Time) (Version, error) {
	if v.AppID == "" {
		return Version{}, errors.Join(ErrInvalidVersion, errors.New("app id is required"))
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now()
	}
	v.CreatedAt = v.CreatedAt.UTC()
	return v, nil
}

func encodeGraph(g convert.PersistedGraph) (string, error) {
	return sonic.ConfigStd.MarshalToString(g)
}

func decodeGraph(data string) (convert.PersistedGraph, error) {
	var g convert.PersistedGraph
	err := sonic.ConfigStd.UnmarshalFromString(data, &g)
	return g, err
}
