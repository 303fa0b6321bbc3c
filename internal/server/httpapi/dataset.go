package httpapi

import (
	"encoding/json"
	"net/http"
	stdsync "sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"

	"github.com/tallybook/tallybook/internal/models"
)

func (s *Server) handleGetDataset(c *gin.Context) {
	ds, err := s.store.Dataset(c.Request.Context(), currentUser(c))
	if err != nil {
		s.log.Error(c.Request.Context(), "load dataset failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load failed"})
		return
	}
	c.JSON(http.StatusOK, ds)
}

// handlePutDataset accepts a full dataset and replaces the stored one iff no
// record is stale. A submitted record conflicts when the stored copy has a
// strictly higher version, or the same version with different content. Any
// conflict rejects the whole write and returns the stored records per type,
// so the client can merge and let a human review ties.
func (s *Server) handlePutDataset(c *gin.Context) {
	var submitted models.Dataset
	if err := c.ShouldBindJSON(&submitted); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed dataset"})
		return
	}

	if err := s.validateParallel(submitted); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	owner := currentUser(c)
	stored, err := s.store.Dataset(c.Request.Context(), owner)
	if err != nil {
		s.log.Error(c.Request.Context(), "load dataset failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load failed"})
		return
	}

	conflicts, err := conflictingDatasets(stored, submitted)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !conflicts.Empty() {
		s.log.Info(c.Request.Context(), "write rejected on versions",
			"user", owner, "conflicts", conflicts.RecordCount())
		c.JSON(http.StatusConflict, gin.H{"conflicts": conflicts})
		return
	}

	if err := s.store.ReplaceDataset(c.Request.Context(), owner, submitted); err != nil {
		s.log.Error(c.Request.Context(), "store dataset failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// validateParallel fans the per-type record checks out over the worker pool
// and aggregates every failure, so a bad batch reports all broken types at
// once.
func (s *Server) validateParallel(ds models.Dataset) error {
	var (
		mu   stdsync.Mutex
		errs error
		wg   stdsync.WaitGroup
	)

	for _, validate := range ds.TypeValidators() {
		validate := validate
		wg.Add(1)
		run := func() {
			defer wg.Done()
			if err := validate(); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}
		if s.pool == nil || s.pool.Submit(run) != nil {
			// Pool saturated or absent: validate inline rather than
			// dropping the check.
			run()
		}
	}
	wg.Wait()
	return errs
}

// conflictingDatasets collects, per entity type, the stored records whose
// version makes the submitted copy stale.
func conflictingDatasets(stored, submitted models.Dataset) (models.Dataset, error) {
	var out models.Dataset
	var err error

	if out.Transactions, err = conflictingRecords[models.Transaction](stored.Transactions, submitted.Transactions); err != nil {
		return out, err
	}
	if out.RecurringTransactions, err = conflictingRecords[models.RecurringTransaction](stored.RecurringTransactions, submitted.RecurringTransactions); err != nil {
		return out, err
	}
	if out.TransactionGroups, err = conflictingRecords[models.TransactionGroup](stored.TransactionGroups, submitted.TransactionGroups); err != nil {
		return out, err
	}
	if out.Tags, err = conflictingRecords[models.Tag](stored.Tags, submitted.Tags); err != nil {
		return out, err
	}
	if out.Categories, err = conflictingRecords[models.Category](stored.Categories, submitted.Categories); err != nil {
		return out, err
	}
	if out.CategoryGroups, err = conflictingRecords[models.CategoryGroup](stored.CategoryGroups, submitted.CategoryGroups); err != nil {
		return out, err
	}
	if out.Users, err = conflictingRecords[models.User](stored.Users, submitted.Users); err != nil {
		return out, err
	}
	out.UserSettings, err = conflictingRecords[models.UserSetting](stored.UserSettings, submitted.UserSettings)
	return out, err
}

func conflictingRecords[T any, PT interface {
	*T
	Key() (string, error)
	MetaRef() *models.Meta
}](stored, submitted []T) ([]T, error) {
	byKey := make(map[string]T, len(stored))
	for i := range stored {
		k, err := PT(&stored[i]).Key()
		if err != nil {
			return nil, err
		}
		byKey[k] = stored[i]
	}

	var conflicts []T
	for i := range submitted {
		p := PT(&submitted[i])
		k, err := p.Key()
		if err != nil {
			return nil, err
		}
		prev, ok := byKey[k]
		if !ok {
			continue
		}
		prevVersion := PT(&prev).MetaRef().Version
		switch {
		case prevVersion > p.MetaRef().Version:
			conflicts = append(conflicts, prev)
		case prevVersion == p.MetaRef().Version && !sameRecord(prev, submitted[i]):
			conflicts = append(conflicts, prev)
		}
	}
	return conflicts, nil
}

// sameRecord compares serialized forms; both sides came through JSON, so
// byte equality is exact equality.
func sameRecord[T any](a, b T) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ab) == string(bb)
}
