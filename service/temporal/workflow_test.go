package temporal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
)

func TestSweepBalancesWorkflow(t *testing.T) {
	tests := []struct {
		name           string
		input          SweepBalancesInput
		mockActivity   func(*testsuite.MockCallWrapper)
		expectedError  bool
		validateResult func(*testing.T, *SweepBalancesResult)
	}{
		{
			name:  "successful sweep",
			input: SweepBalancesInput{TriggeredBy: "schedule"},
			mockActivity: func(m *testsuite.MockCallWrapper) {
				m.Return(&SweepBalancesResult{
					Checked:   3,
					Notified:  1,
					Failed:    1,
					Skipped:   2,
					StartedAt: time.Now(),
				}, nil)
			},
			validateResult: func(t *testing.T, result *SweepBalancesResult) {
				assert.Equal(t, 3, result.Checked)
				assert.Equal(t, 1, result.Notified)
				assert.Equal(t, 1, result.Failed)
				assert.Equal(t, 2, result.Skipped)
				assert.Nil(t, result.Error)
			},
		},
		{
			name:  "empty store",
			input: SweepBalancesInput{TriggeredBy: "cli"},
			mockActivity: func(m *testsuite.MockCallWrapper) {
				m.Return(&SweepBalancesResult{StartedAt: time.Now()}, nil)
			},
			validateResult: func(t *testing.T, result *SweepBalancesResult) {
				assert.Zero(t, result.Checked)
				assert.Zero(t, result.Notified)
			},
		},
		{
			name:  "sweep activity fails",
			input: SweepBalancesInput{TriggeredBy: "schedule"},
			mockActivity: func(m *testsuite.MockCallWrapper) {
				m.Return(nil, errors.New("record store unavailable"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testSuite := &testsuite.WorkflowTestSuite{}
			env := testSuite.NewTestWorkflowEnvironment()

			activities := &Activities{}
			env.RegisterActivity(activities.SweepBalances)
			tt.mockActivity(env.OnActivity(activities.SweepBalances, mock.Anything, tt.input).Once())

			env.ExecuteWorkflow(SweepBalancesWorkflow, tt.input)

			require.True(t, env.IsWorkflowCompleted())
			if tt.expectedError {
				assert.Error(t, env.GetWorkflowError())
				env.AssertExpectations(t)
				return
			}

			require.NoError(t, env.GetWorkflowError())
			var result SweepBalancesResult
			require.NoError(t, env.GetWorkflowResult(&result))
			tt.validateResult(t, &result)
			env.AssertExpectations(t)
		})
	}
}

func TestSweepBalancesWorkflow_NoRetry(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.SweepBalances)

	attempts := 0
	env.OnActivity(activities.SweepBalances, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { attempts++ }).
		Return(nil, errors.New("boom"))

	env.ExecuteWorkflow(SweepBalancesWorkflow, SweepBalancesInput{TriggeredBy: "schedule"})

	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
	assert.Equal(t, 1, attempts, "a failed sweep waits for the next scheduled run")
}
