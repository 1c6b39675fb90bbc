package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"echoflow/internal/app"
	"echoflow/internal/config"
	"echoflow/internal/db"
	"echoflow/internal/db/seeder"
	"echoflow/internal/providers/redis"
	"echoflow/internal/utils"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	var (
		cfg    config.Config
		logger *zap.Logger
	)

	cliApp := &cli.App{
		Name:  "echoflow",
		Usage: "EchoFlow backend administration",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "env-file",
				Usage:   "env files to load before reading configuration",
				EnvVars: []string{"ECHOFLOW_ENV_FILE"},
			},
		},
		Before: func(c *cli.Context) error {
			bootLogger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			utils.LoadEnv(bootLogger, c.StringSlice("env-file")...)

			cfg = config.LoadConfig()
			logger, err = utils.NewLogger(cfg.Env)
			return err
		},
		After: func(c *cli.Context) error {
			if logger != nil {
				_ = logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP and websocket server",
				Action: func(c *cli.Context) error {
					return app.Serve(&cfg, logger)
				},
			},
			{
				Name:  "migrate",
				Usage: "apply the database schema",
				Action: func(c *cli.Context) error {
					conn, err := db.Connect(&cfg, logger)
					if err != nil {
						return err
					}
					return db.Migrate(conn, logger)
				},
			},
			{
				Name:  "seed",
				Usage: "create the records the service expects to exist",
				Action: func(c *cli.Context) error {
					conn, err := db.Connect(&cfg, logger)
					if err != nil {
						return err
					}
					return seeder.NewSeeder(conn, logger).Seed(c.Context)
				},
			},
			{
				Name:  "health",
				Usage: "check database and redis connectivity",
				Action: func(c *cli.Context) error {
					return checkHealth(c.Context, &cfg, logger)
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func checkHealth(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	checker := &utils.HealthChecker{}

	conn, err := db.Connect(cfg, logger)
	if err != nil {
		logger.Warn("Database unreachable", zap.Error(err))
	} else {
		checker.DB = conn
	}

	redisProvider := redis.NewRedisProvider(cfg.RedisURL, logger, cfg.RedisTTL)
	defer redisProvider.Close()
	checker.Redis = redisProvider.Client

	status := checker.Check(ctx)
	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if conn == nil || status.Status != "healthy" {
		return cli.Exit("unhealthy", 1)
	}
	return nil
}
