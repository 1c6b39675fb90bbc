package utils_test

import (
	"context"
	"errors"
	"testing"

	"echoflow/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckerOptionalChecks(t *testing.T) {
	checker := &utils.HealthChecker{
		Optional: map[string]utils.CheckFunc{
			"MinIO": func(context.Context) error { return nil },
			"LLM":   func(context.Context) error { return errors.New("unreachable") },
		},
	}

	status := checker.Check(context.Background())

	assert.Equal(t, "degraded", status.Status)
	require.Len(t, status.Services, 2)
	assert.Equal(t, "LLM", status.Services[0].Name)
	assert.Equal(t, "down", status.Services[0].Status)
	assert.Equal(t, "unreachable", status.Services[0].Message)
	assert.Equal(t, "MinIO", status.Services[1].Name)
	assert.Equal(t, "up", status.Services[1].Status)
}

func TestHealthCheckerHealthyWithoutDependencies(t *testing.T) {
	status := (&utils.HealthChecker{}).Check(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.Empty(t, status.Services)
}
