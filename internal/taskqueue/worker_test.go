package taskqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitWorkersAssignsClientBeforeServing(t *testing.T) {
	// construction is lazy in asynq, no Redis needed here
	initWorkers("127.0.0.1:6379")

	assert.NotNil(t, asynqClient)
	assert.NotNil(t, asynqSrv)
}
