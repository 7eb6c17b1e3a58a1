package repositories

import (
	"context"
	"errors"
	"time"

	"task-manager/apperrors"
	"task-manager/logging"
	"task-manager/models"

	"github.com/sony/gobreaker"
)

// NewStoreBreaker trips after more than maxFailures consecutive store outages.
// Domain errors (not found, stale write, conflict) and calls abandoned by the
// caller's context count as successes.
func NewStoreBreaker(name string, maxFailures uint32, timeout time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > maxFailures
		},
		IsSuccessful: isStoreHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
	})
}

func isStoreHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return apperrors.KindOf(err) != apperrors.KindUnavailable
}

func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	result, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		logging.Logger.Warnf("Event ID: CIRCUIT_BREAKER_REJECTED, Description: Circuit Breaker '%s' rejected call: %v", cb.Name(), err)
		return zero, apperrors.Wrap(apperrors.KindUnavailable, err, "store temporarily unavailable")
	}
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}

func executeErr(cb *gobreaker.CircuitBreaker, fn func() error) error {
	_, err := execute(cb, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

type BreakerTaskRepository struct {
	next TaskRepository
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerTaskRepository(next TaskRepository, cb *gobreaker.CircuitBreaker) *BreakerTaskRepository {
	return &BreakerTaskRepository{next: next, cb: cb}
}

func (r *BreakerTaskRepository) Insert(ctx context.Context, task *models.Task) error {
	return executeErr(r.cb, func() error { return r.next.Insert(ctx, task) })
}

func (r *BreakerTaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	return execute(r.cb, func() (*models.Task, error) { return r.next.FindByID(ctx, id) })
}

func (r *BreakerTaskRepository) Find(ctx context.Context, filter TaskFilter, opts FindOptions) ([]models.Task, error) {
	return execute(r.cb, func() ([]models.Task, error) { return r.next.Find(ctx, filter, opts) })
}

func (r *BreakerTaskRepository) Count(ctx context.Context, filter TaskFilter) (int64, error) {
	return execute(r.cb, func() (int64, error) { return r.next.Count(ctx, filter) })
}

func (r *BreakerTaskRepository) Update(ctx context.Context, task *models.Task, expectedVersion int64) error {
	return executeErr(r.cb, func() error { return r.next.Update(ctx, task, expectedVersion) })
}

func (r *BreakerTaskRepository) Delete(ctx context.Context, id string) error {
	return executeErr(r.cb, func() error { return r.next.Delete(ctx, id) })
}

func (r *BreakerTaskRepository) CountReferences(ctx context.Context, userID string) (int64, error) {
	return execute(r.cb, func() (int64, error) { return r.next.CountReferences(ctx, userID) })
}

// Ping bypasses the breaker so health checks report the real store state.
func (r *BreakerTaskRepository) Ping(ctx context.Context) error {
	return r.next.Ping(ctx)
}

type BreakerUserRepository struct {
	next UserRepository
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerUserRepository(next UserRepository, cb *gobreaker.CircuitBreaker) *BreakerUserRepository {
	return &BreakerUserRepository{next: next, cb: cb}
}

func (r *BreakerUserRepository) Insert(ctx context.Context, user *models.User) error {
	return executeErr(r.cb, func() error { return r.next.Insert(ctx, user) })
}

func (r *BreakerUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return execute(r.cb, func() (*models.User, error) { return r.next.FindByID(ctx, id) })
}

func (r *BreakerUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return execute(r.cb, func() (*models.User, error) { return r.next.FindByEmail(ctx, email) })
}

func (r *BreakerUserRepository) FindByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	return execute(r.cb, func() ([]models.User, error) { return r.next.FindByRole(ctx, role) })
}

func (r *BreakerUserRepository) Update(ctx context.Context, user *models.User) error {
	return executeErr(r.cb, func() error { return r.next.Update(ctx, user) })
}

func (r *BreakerUserRepository) Delete(ctx context.Context, id string) error {
	return executeErr(r.cb, func() error { return r.next.Delete(ctx, id) })
}
