package runner

import "github.com/bookedby/convoqa/internal/models"

// ProgressListener receives live events during test execution. All methods
// are called from the executing goroutine and should return quickly.
type ProgressListener interface {
	TestStarted(testID string)
	TurnCompleted(testID string, turn int, category string)
	TestFinished(result *models.GoalTestResult)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) TestStarted(string)                  {}
func (NopListener) TurnCompleted(string, int, string)   {}
func (NopListener) TestFinished(*models.GoalTestResult) {}
