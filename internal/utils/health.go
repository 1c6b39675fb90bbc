package utils

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const healthCheckTimeout = 2 * time.Second

type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Services  []Service `json:"services"`
}

type Service struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type CheckFunc func(ctx context.Context) error

type HealthChecker struct {
	DB    *gorm.DB
	Redis *redis.Client
	// Optional dependencies; a failing optional check degrades the status
	// the same way as the database or redis.
	Optional map[string]CheckFunc
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	var services []Service
	overallStatus := "healthy"

	run := func(name string, check CheckFunc) {
		service := Service{Name: name}
		ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
		if err := check(ctx); err != nil {
			service.Status = "down"
			service.Message = err.Error()
			overallStatus = "degraded"
		} else {
			service.Status = "up"
		}
		services = append(services, service)
	}

	if h.DB != nil {
		run("PostgreSQL", func(ctx context.Context) error {
			sqlDB, err := h.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
	}

	if h.Redis != nil {
		run("Redis", func(ctx context.Context) error {
			return h.Redis.Ping(ctx).Err()
		})
	}

	for _, name := range slices.Sorted(maps.Keys(h.Optional)) {
		run(name, h.Optional[name])
	}

	return HealthStatus{
		Status:    overallStatus,
		Timestamp: time.Now().UTC(),
		Services:  services,
	}
}
