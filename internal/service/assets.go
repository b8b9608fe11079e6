package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
)

// AssetKind is the folder an uploaded image is stored under.
type AssetKind string

const (
	AssetAvatar     AssetKind = "avatar"
	AssetCoverImage AssetKind = "cover-image"
)

// MaxAssetSize caps a single uploaded image.
const MaxAssetSize = 5 << 20

// Asset is an uploaded file as the transport received it.
type Asset struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Assets stores profile images and hands back the URL the user record keeps.
type Assets struct {
	storage model.Storage
	logger  *logger.Logger
}

func NewAssets(storage model.Storage, logger *logger.Logger) *Assets {
	return &Assets{storage: storage, logger: logger}
}

// Upload stores asset under <kind>/<uuid><ext> and returns its public URL.
func (a *Assets) Upload(ctx context.Context, kind AssetKind, asset Asset) (string, error) {
	if !strings.HasPrefix(asset.ContentType, "image/") {
		return "", model.NewValidationError(model.ReasonInvalidFile, string(kind),
			fmt.Sprintf("%s must be an image", kind))
	}
	if asset.Size <= 0 || asset.Size > MaxAssetSize {
		return "", model.NewValidationError(model.ReasonInvalidFile, string(kind),
			fmt.Sprintf("%s must be between 1 byte and %d bytes", kind, MaxAssetSize))
	}

	key := fmt.Sprintf("%s/%s%s", kind, uuid.NewString(), strings.ToLower(filepath.Ext(asset.Filename)))

	if err := a.storage.Upload(ctx, key, asset.Reader, asset.Size, asset.ContentType); err != nil {
		a.logger.Error("Assets service: failed to upload asset",
			"kind", kind,
			"key", key,
			"error", err.Error())
		return "", model.NewStorageError(fmt.Errorf("failed to upload %s: %w", kind, err))
	}

	a.logger.Debug("Assets service: asset uploaded",
		"kind", kind,
		"key", key)

	return a.storage.URL(key), nil
}

// Remove deletes the object behind url. Failures are only logged.
func (a *Assets) Remove(ctx context.Context, url string) {
	if url == "" {
		return
	}
	key, ok := a.storage.KeyFromURL(url)
	if !ok {
		return
	}
	if err := a.storage.Delete(ctx, key); err != nil {
		a.logger.Warn("Assets service: failed to remove asset",
			"key", key,
			"error", err.Error())
	}
}
