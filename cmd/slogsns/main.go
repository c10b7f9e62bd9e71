// Copyright 2025 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command slogsns publishes a single log message to an SNS topic through the
// slogsns handler. It is useful for checking topic permissions and
// subscriptions before wiring the handler into a service.
//
//	slogsns publish --topic arn:aws:sns:us-east-1:123456789012:notify-admin disk full on host A
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/pjscruggs/slogsns"
)

const (
	flagTopic     = "topic"
	flagAccessKey = "access-key"
	flagSecretKey = "secret-key"
	flagRegion    = "region"
	flagEndpoint  = "endpoint"
	flagLevel     = "level"
	flagSubject   = "subject"
	flagVerbose   = "verbose"
)

// errNotificationFailed is returned when the handler reported a failure.
var errNotificationFailed = errors.New("notification was not delivered")

func main() {
	if err := loadEnvFiles(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cmd := newCommand(os.Stdout, os.Stderr, nil)
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "slogsns:", err)
		os.Exit(1)
	}
}

// loadEnvFiles loads .env and then .env.local when present. Variables
// already set in the environment win over .env; .env.local overrides both.
func loadEnvFiles() error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}
	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Overload(".env.local"); err != nil {
			return fmt.Errorf("failed to load .env.local: %w", err)
		}
	}
	return nil
}

// newCommand builds the CLI. A nil factory selects the AWS SNS client.
func newCommand(stdout, stderr io.Writer, factory slogsns.ClientFactory) *cli.Command {
	return &cli.Command{
		Name:      "slogsns",
		Usage:     "Send log notifications to AWS SNS",
		Writer:    stdout,
		ErrWriter: stderr,
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "Print the slogsns version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					_, err := fmt.Fprintf(cmd.Root().Writer, "slogsns %s\n", slogsns.GetVersion())
					return err
				},
			},
			{
				Name:      "publish",
				Usage:     "Publish MESSAGE to the topic as one log record",
				ArgsUsage: "MESSAGE...",
				Flags:     publishFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return publish(ctx, cmd, factory)
				},
			},
		},
	}
}

func publishFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     flagTopic,
			Category: "destination",
			Usage:    "SNS topic ARN",
			Sources:  cli.EnvVars("SLOGSNS_TOPIC"),
		},
		&cli.StringFlag{
			Name:     flagSubject,
			Category: "destination",
			Usage:    "Subject for email subscriptions",
			Sources:  cli.EnvVars("SLOGSNS_SUBJECT"),
		},
		&cli.StringFlag{
			Name:     flagAccessKey,
			Category: "credentials",
			Usage:    "AWS access key ID",
			Sources:  cli.EnvVars("SLOGSNS_ACCESS_KEY", "AWS_ACCESS_KEY_ID"),
		},
		&cli.StringFlag{
			Name:     flagSecretKey,
			Category: "credentials",
			Usage:    "AWS secret access key",
			Sources:  cli.EnvVars("SLOGSNS_SECRET_KEY", "AWS_SECRET_ACCESS_KEY"),
		},
		&cli.StringFlag{
			Name:     flagRegion,
			Category: "connection",
			Usage:    "AWS region (default " + slogsns.DefaultRegion + ")",
			Sources:  cli.EnvVars("SLOGSNS_REGION"),
		},
		&cli.StringFlag{
			Name:     flagEndpoint,
			Category: "connection",
			Usage:    "Override the SNS endpoint, e.g. http://localhost:4566",
			Sources:  cli.EnvVars("SLOGSNS_ENDPOINT"),
		},
		&cli.StringFlag{
			Name:     flagLevel,
			Value:    "error",
			Category: "record",
			Usage:    "Record level: trace, debug, info, warn, error, fatal or a number",
			Action: func(ctx context.Context, cmd *cli.Command, s string) error {
				if _, ok := slogsns.ParseLevel(s); !ok {
					return fmt.Errorf("invalid log level: %s", s)
				}
				return nil
			},
		},
		&cli.BoolFlag{
			Name:     flagVerbose,
			Category: "logging",
			Usage:    "Write handler diagnostics to stderr",
		},
	}
}

// publish sends the positional arguments as one notification. The record
// bypasses the handler's threshold so --level only selects the severity
// attribute.
func publish(ctx context.Context, cmd *cli.Command, factory slogsns.ClientFactory) error {
	message := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(message) == "" {
		return errors.New("MESSAGE is required")
	}
	level, ok := slogsns.ParseLevel(cmd.String(flagLevel))
	if !ok {
		return fmt.Errorf("invalid log level: %s", cmd.String(flagLevel))
	}

	stderr := cmd.Root().ErrWriter
	var failures atomic.Int32
	opts := []slogsns.Option{
		slogsns.WithTopic(cmd.String(flagTopic)),
		slogsns.WithCredentials(cmd.String(flagAccessKey), cmd.String(flagSecretKey)),
		slogsns.WithRegion(cmd.String(flagRegion)),
		slogsns.WithEndpoint(cmd.String(flagEndpoint)),
		slogsns.WithSubject(cmd.String(flagSubject)),
		slogsns.WithErrorHandler(slogsns.ErrorHandlerFunc(func(description string) {
			failures.Add(1)
			fmt.Fprintln(stderr, description)
		})),
	}
	if factory != nil {
		opts = append(opts, slogsns.WithClientFactory(factory))
	}
	if cmd.Bool(flagVerbose) {
		opts = append(opts, slogsns.WithInternalLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	}

	slogsns.EnsurePropagation()
	handler, err := slogsns.NewHandler(opts...)
	if err != nil {
		return err
	}
	handler.Append(ctx, slogsns.Event{Level: level, Time: time.Now(), Message: message})
	if err := handler.Close(); err != nil {
		fmt.Fprintln(stderr, err)
	}

	if failures.Load() > 0 {
		return errNotificationFailed
	}
	return nil
}
