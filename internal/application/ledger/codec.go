package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/drawdrill/drawdrill/internal/domain/practice"
	"github.com/drawdrill/drawdrill/internal/domain/shared"
	"github.com/drawdrill/drawdrill/pkg/logger"
)

// load reads both blobs. Each blob falls back to its default independently:
// a broken sessions blob yields an empty ledger, a broken achievements blob
// yields the default catalog. Missing blobs are not failures.
func (l *Ledger) load(ctx context.Context) ([]practice.Session, []practice.Achievement, error) {
	var errs []error

	var sessions []practice.Session
	if err := l.loadBlob(ctx, practice.SessionsBlobKey, &sessions); err != nil {
		sessions = nil
		errs = append(errs, err)
	}

	var stored []practice.Achievement
	if err := l.loadBlob(ctx, practice.AchievementsBlobKey, &stored); err != nil {
		stored = nil
		errs = append(errs, err)
	}

	return sessions, practice.MergeAchievements(stored), errors.Join(errs...)
}

func (l *Ledger) loadBlob(ctx context.Context, key string, dst any) error {
	start := time.Now()

	data, err := l.store.Load(ctx, key)
	if errors.Is(err, shared.ErrBlobNotFound) {
		l.log.Debug("blob absent, using defaults", logger.BlobKey(key))
		return nil
	}
	if err != nil {
		l.log.Error("failed to load blob", logger.BlobKey(key), logger.Err(err))
		return shared.WrapError("ledger", "Load", shared.ErrStorageRead, "failed to load "+key, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		l.log.Error("failed to decode blob", logger.BlobKey(key), logger.Err(err))
		return shared.WrapError("ledger", "Load", shared.ErrStorageRead, "malformed "+key,
			errors.Join(shared.ErrInvalidFormat, err))
	}

	l.log.Debug("blob loaded", logger.BlobKey(key), logger.Latency(time.Since(start)))
	return nil
}

// save writes both blobs and records the outcome as the ledger's last storage
// error. Both writes are attempted even if the first fails.
func (l *Ledger) save(ctx context.Context) error {
	sessions := l.sessions
	if sessions == nil {
		sessions = []practice.Session{}
	}

	err := errors.Join(
		l.saveBlob(ctx, practice.SessionsBlobKey, sessions),
		l.saveBlob(ctx, practice.AchievementsBlobKey, l.achievements),
	)
	l.lastErr = err
	return err
}

func (l *Ledger) saveBlob(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		l.log.Error("failed to encode blob", logger.BlobKey(key), logger.Err(err))
		return shared.WrapError("ledger", "Save", shared.ErrStorageWrite, "failed to encode "+key, err)
	}

	if err := l.store.Save(ctx, key, data); err != nil {
		l.log.Error("failed to save blob", logger.BlobKey(key), logger.Err(err))
		return shared.WrapError("ledger", "Save", shared.ErrStorageWrite, "failed to save "+key, err)
	}
	return nil
}
