// Package video renders the lesson page: the player for one video of a
// course plus the browser side of resume tracking.
package video

import (
	"context"
	"time"

	"github.com/starteducation/starteducation/internal/database"
)

type ObjectStorage interface {
	GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type Handler struct {
	db      database.DBTX
	storage ObjectStorage
	baseURL string
}

func NewHandler(db database.DBTX, s ObjectStorage, baseURL string) *Handler {
	return &Handler{
		db:      db,
		storage: s,
		baseURL: baseURL,
	}
}
