/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package main

import (
	"os"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/BSAI-24005/file-verse/cmd/omnifs-server/app/server"
	"github.com/BSAI-24005/file-verse/cmd/omnifs-server/pkg/command"
	"github.com/BSAI-24005/file-verse/cmd/omnifs-server/pkg/logging"
	"github.com/BSAI-24005/file-verse/config"
	"github.com/BSAI-24005/file-verse/pkg/errdefs"
)

// Version is set at build time with -ldflags.
var Version = "development"

func prepare(flags *command.Flags) (*config.Config, error) {
	if err := logging.SetUp(flags.Args.LogLevel); err != nil {
		return nil, errors.Wrap(err, "failed to prepare logger")
	}
	var cfg config.Config
	if err := command.Validate(flags.Args, &cfg); err != nil {
		return nil, errors.Wrap(err, "invalid argument")
	}
	return &cfg, nil
}

func main() {
	flags := command.NewFlags()
	app := &cli.App{
		Name:    "omnifs-server",
		Usage:   "serve an OMNI image over the line protocol and HTTP",
		Version: Version,
		Flags:   flags.F,
		Action: func(c *cli.Context) error {
			cfg, err := prepare(flags)
			if err != nil {
				return err
			}
			return server.Start(logging.WithContext("serve"), *cfg)
		},
		Commands: []*cli.Command{
			{
				Name:  "format",
				Usage: "write a fresh image and exit",
				Action: func(c *cli.Context) error {
					cfg, err := prepare(flags)
					if err != nil {
						return err
					}
					_, err = server.Format(logging.WithContext("format"), *cfg)
					return err
				},
			},
			{
				Name:  "inspect",
				Usage: "print the header and user slots of an image",
				Action: func(c *cli.Context) error {
					cfg, err := prepare(flags)
					if err != nil {
						return err
					}
					return server.Inspect(logging.WithContext("inspect"), cfg.ImagePath, os.Stdout)
				},
			},
			{
				Name:  "audit",
				Usage: "list recorded login attempts",
				Action: func(c *cli.Context) error {
					cfg, err := prepare(flags)
					if err != nil {
						return err
					}
					if cfg.AuditDBPath == "" {
						return errors.New("no audit database configured, set --audit-db")
					}
					return server.ListLogins(logging.WithContext("audit"), cfg.AuditDBPath, os.Stdout)
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		if errdefs.IsConnectionClosed(err) {
			log.L.Info("omnifs-server exited")
			return
		}
		log.L.WithError(err).Fatal("omnifs-server failed")
	}
}
