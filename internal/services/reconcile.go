package services

import (
	"context"
	"sync"
	"time"

	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/internal/storage"
	"github.com/filevault/backend/pkg/logger"
	"gorm.io/gorm"
)

const reconcileBatchSize = 100

// Reconciler completes permanent deletions that stopped after the purge mark
// was set. Blob deletes are idempotent, so a row whose blob is already gone
// is simply removed.
type Reconciler struct {
	DB             *gorm.DB
	Storage        storage.BlobStore
	Grace          time.Duration
	Timeout        time.Duration
	StorageTimeout time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewReconciler(db *gorm.DB, store storage.BlobStore, grace, timeout, storageTimeout time.Duration) *Reconciler {
	if storageTimeout <= 0 {
		storageTimeout = 30 * time.Second
	}
	return &Reconciler{
		DB:             db,
		Storage:        store,
		Grace:          grace,
		Timeout:        timeout,
		StorageTimeout: storageTimeout,
		stop:           make(chan struct{}),
	}
}

type ReconcileResult struct {
	Purged  int
	Failed  int
	Skipped int
}

// RunOnce processes one batch of stale purge marks.
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult
	cutoff := time.Now().UTC().Add(-r.Grace)

	db, cancel := withTimeout(ctx, r.DB, r.Timeout)
	var pending []models.File
	err := db.Where("purge_requested_at IS NOT NULL AND purge_requested_at <= ?", cutoff).
		Order("purge_requested_at ASC").
		Limit(reconcileBatchSize).
		Find(&pending).Error
	cancel()
	if err != nil {
		return result, dbError(err)
	}

	for _, file := range pending {
		claimed, err := r.claim(ctx, file, cutoff)
		if err != nil {
			return result, err
		}
		if !claimed {
			result.Skipped++
			continue
		}

		if err := r.purge(ctx, file); err != nil {
			result.Failed++
			logger.Error("reconcile_purge_failed", err, map[string]interface{}{
				"file_id":      file.ID.String(),
				"storage_path": file.StoragePath,
			})
			continue
		}
		result.Purged++
	}

	if len(pending) > 0 {
		logger.Info("reconcile_completed", map[string]interface{}{
			"purged":  result.Purged,
			"failed":  result.Failed,
			"skipped": result.Skipped,
		})
	}
	return result, nil
}

// claim renews the purge mark of a still-stale row. A request that is still
// waiting on its own blob delete can then no longer unmark it, and a
// concurrent reconciler skips it until the grace period passes again.
func (r *Reconciler) claim(ctx context.Context, file models.File, cutoff time.Time) (bool, error) {
	db, cancel := withTimeout(ctx, r.DB, r.Timeout)
	defer cancel()
	result := db.Model(&models.File{}).
		Where("id = ? AND purge_requested_at IS NOT NULL AND purge_requested_at <= ?", file.ID, cutoff).
		Update("purge_requested_at", purgeMarkTime())
	if result.Error != nil {
		return false, dbError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *Reconciler) purge(ctx context.Context, file models.File) error {
	delCtx, cancel := context.WithTimeout(ctx, r.StorageTimeout)
	err := r.Storage.Delete(delCtx, file.StoragePath)
	cancel()
	if err != nil {
		return err
	}

	db, cancelDB := withTimeout(ctx, r.DB, r.Timeout)
	defer cancelDB()
	return purgeRecord(db, file.ID)
}

// Start runs RunOnce every interval until Stop is called. A non-positive
// interval disables the loop.
func (r *Reconciler) Start(interval time.Duration) {
	if interval <= 0 {
		logger.Info("reconciler_disabled", nil)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				if _, err := r.RunOnce(context.Background()); err != nil {
					logger.Error("reconcile_run_failed", err, nil)
				}
			}
		}
	}()

	logger.Info("reconciler_started", map[string]interface{}{
		"interval": interval.String(),
		"grace":    r.Grace.String(),
	})
}

func (r *Reconciler) Stop() {
	r.once.Do(func() { close(r.stop) })
	r.wg.Wait()
}
