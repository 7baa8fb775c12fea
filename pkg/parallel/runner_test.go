package parallel

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_AllTasks(t *testing.T) {
	tests := []struct {
		name   string
		runner Runner
		tasks  int
	}{
		{"nil", nil, 17},
		{"sequential", Sequential{}, 5},
		{"pool", NewPool(4), 100},
		{"pool more workers than tasks", NewPool(16), 3},
		{"empty", NewPool(4), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := make([]int, tt.tasks)
			var calls atomic.Int32
			require.NoError(t, Run(tt.runner, tt.tasks, func(task int) error {
				calls.Add(1)
				out[task] = task * 2
				return nil
			}))
			assert.Equal(t, int32(tt.tasks), calls.Load())
			for i, v := range out {
				assert.Equal(t, i*2, v)
			}
		})
	}
}

func TestRun_LowestErrorWins(t *testing.T) {
	fail := errors.New("fail")
	err := NewPool(8).Run(64, func(task int) error {
		if task == 9 || task == 50 {
			return fmt.Errorf("task %d: %w", task, fail)
		}
		return nil
	})
	require.ErrorIs(t, err, fail)
	assert.Contains(t, err.Error(), "task 9")
}
