package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nullbridge/testforge/internal/errs"
)

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3}, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errs.NewExecutionError("step", "transient", errors.New("boom"), true)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestDo_StopsAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), Policy{MaxAttempts: 2}, func(ctx context.Context) error {
		attempts++
		return errs.NewExecutionError("step", "always fails", errors.New("boom"), true)
	})
	require.Error(t, err)
	require.Equal(t, 2, attempts)
}

func TestDo_NonRecoverableErrorStopsImmediately(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), Policy{MaxAttempts: 5}, func(ctx context.Context) error {
		attempts++
		return errs.NewValidationError("step", "bad config", errors.New("boom"))
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestDo_ZeroMaxAttemptsTreatedAsOne(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), Policy{}, func(ctx context.Context) error {
		attempts++
		return errs.NewExecutionError("step", "fails", errors.New("boom"), true)
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}
