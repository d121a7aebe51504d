/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package command

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/BSAI-24005/file-verse/config"
)

const defaultLogLevel = logrus.InfoLevel

// Args holds command line values. Empty strings and zero numbers leave the
// configuration file value in place.
type Args struct {
	LogLevel       string
	ConfigPath     string
	ImagePath      string
	LineAddress    string
	HTTPAddress    string
	QueueCapacity  int
	EnableMetrics  bool
	MetricsAddress string
	AuditDBPath    string
	NoFormat       bool
}

type Flags struct {
	Args *Args
	F    []cli.Flag
}

func buildFlags(args *Args) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Value:       defaultLogLevel.String(),
			Usage:       "set the logging level [trace, debug, info, warn, error, fatal, panic]",
			Destination: &args.LogLevel,
		},
		&cli.StringFlag{
			Name:        "config-path",
			Usage:       "path to the TOML configuration file",
			Destination: &args.ConfigPath,
		},
		&cli.StringFlag{
			Name:        "image",
			Usage:       "path to the OMNI image file",
			Destination: &args.ImagePath,
		},
		&cli.StringFlag{
			Name:        "line-address",
			Usage:       "listen address of the line protocol",
			Destination: &args.LineAddress,
		},
		&cli.StringFlag{
			Name:        "http-address",
			Usage:       "listen address of the HTTP wrapper",
			Destination: &args.HTTPAddress,
		},
		&cli.IntFlag{
			Name:        "queue-capacity",
			Usage:       "number of requests buffered ahead of the dispatcher",
			Destination: &args.QueueCapacity,
		},
		&cli.BoolFlag{
			Name:        "enable-metrics",
			Value:       false,
			Usage:       "whether to serve prometheus metrics",
			Destination: &args.EnableMetrics,
		},
		&cli.StringFlag{
			Name:        "metrics-address",
			Usage:       "listen address of the metrics endpoint",
			Destination: &args.MetricsAddress,
		},
		&cli.StringFlag{
			Name:        "audit-db",
			Usage:       "path to the login audit database, empty disables auditing",
			Destination: &args.AuditDBPath,
		},
		&cli.BoolFlag{
			Name:        "no-format",
			Value:       false,
			Usage:       "open the existing image instead of formatting a fresh one",
			Destination: &args.NoFormat,
		},
	}
}

func NewFlags() *Flags {
	var args Args
	return &Flags{
		Args: &args,
		F:    buildFlags(&args),
	}
}

// Validate builds cfg from defaults, the configuration file and the flags,
// in that order of precedence.
func Validate(args *Args, cfg *config.Config) error {
	*cfg = *config.Default()
	if args.ConfigPath != "" {
		if err := config.LoadConfig(args.ConfigPath, cfg); err != nil {
			return errors.Wrapf(err, "failed to load config file %q", args.ConfigPath)
		}
	}
	if args.ImagePath != "" {
		cfg.ImagePath = args.ImagePath
	}
	if args.LineAddress != "" {
		cfg.LineAddress = args.LineAddress
	}
	if args.HTTPAddress != "" {
		cfg.HTTPAddress = args.HTTPAddress
	}
	if args.QueueCapacity != 0 {
		cfg.QueueCapacity = args.QueueCapacity
	}
	if args.EnableMetrics {
		cfg.EnableMetrics = true
	}
	if args.MetricsAddress != "" {
		cfg.MetricsAddress = args.MetricsAddress
	}
	if args.AuditDBPath != "" {
		cfg.AuditDBPath = args.AuditDBPath
	}
	if args.NoFormat {
		cfg.FormatOnStart = false
	}
	return cfg.Validate()
}
