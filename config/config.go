/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package config

import (
	"encoding/hex"
	"net"
	"os"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"lukechampine.com/blake3"

	"github.com/BSAI-24005/file-verse/pkg/errdefs"
	"github.com/BSAI-24005/file-verse/pkg/omni"
)

const (
	DefaultImagePath      = "omnifs.omni"
	DefaultLineAddress    = ":8080"
	DefaultHTTPAddress    = ":4000"
	DefaultMetricsAddress = ":9110"
	DefaultQueueCapacity  = 1000
)

type Config struct {
	ImagePath      string `toml:"image_path"`
	TotalSize      uint64 `toml:"total_size"`
	BlockSize      uint64 `toml:"block_size"`
	MaxUsers       uint32 `toml:"max_users"`
	AdminUsername  string `toml:"admin_username"`
	AdminPassword  string `toml:"admin_password"`
	SubmissionID   string `toml:"submission_id"`
	SubmissionDate string `toml:"submission_date"`
	FormatOnStart  bool   `toml:"format_on_start"`

	LineAddress   string `toml:"line_address"`
	HTTPAddress   string `toml:"http_address"`
	QueueCapacity int    `toml:"queue_capacity"`

	EnableMetrics  bool   `toml:"enable_metrics"`
	MetricsAddress string `toml:"metrics_address"`
	AuditDBPath    string `toml:"audit_db_path"`

	// Filled from the loaded file, never read from it.
	ConfigHash      string    `toml:"-"`
	ConfigTimestamp time.Time `toml:"-"`
}

func Default() *Config {
	return &Config{
		ImagePath:      DefaultImagePath,
		TotalSize:      omni.DefaultTotalSize,
		BlockSize:      omni.DefaultBlockSize,
		MaxUsers:       omni.DefaultMaxUsers,
		AdminUsername:  "admin",
		AdminPassword:  "7861",
		FormatOnStart:  true,
		LineAddress:    DefaultLineAddress,
		HTTPAddress:    DefaultHTTPAddress,
		QueueCapacity:  DefaultQueueCapacity,
		MetricsAddress: DefaultMetricsAddress,
	}
}

// LoadConfig overlays the TOML file at path onto cfg. Keys absent from the
// file keep their current values.
func LoadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errdefs.NewIOError("read config", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return errdefs.NewIOError("stat config", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	sum := blake3.Sum256(data)
	cfg.ConfigHash = hex.EncodeToString(sum[:])
	cfg.ConfigTimestamp = info.ModTime()
	return nil
}

func (c *Config) Validate() error {
	if c.ImagePath == "" {
		return errors.New("image path is required")
	}
	if c.QueueCapacity <= 0 {
		return errors.Errorf("queue capacity must be positive, got %d", c.QueueCapacity)
	}
	if c.AdminUsername == "" || c.AdminPassword == "" {
		return errors.New("admin username and password must not be empty")
	}
	if err := omni.CheckFormatOptions(c.FormatOptions()); err != nil {
		return err
	}
	addrs := map[string]string{"line": c.LineAddress, "http": c.HTTPAddress}
	if c.EnableMetrics {
		addrs["metrics"] = c.MetricsAddress
	}
	for name, addr := range addrs {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return errors.Wrapf(err, "invalid %s address %q", name, addr)
		}
	}
	return nil
}

// FormatOptions describes the image this configuration formats. The header
// keeps a NUL after the config hash, so only its first ConfigHashSize-1
// characters are stored.
func (c *Config) FormatOptions() omni.FormatOptions {
	hash := c.ConfigHash
	if len(hash) > omni.ConfigHashSize-1 {
		hash = hash[:omni.ConfigHashSize-1]
	}
	return omni.FormatOptions{
		TotalSize:       c.TotalSize,
		BlockSize:       c.BlockSize,
		MaxUsers:        c.MaxUsers,
		AdminUsername:   c.AdminUsername,
		AdminPassword:   c.AdminPassword,
		SubmissionID:    c.SubmissionID,
		SubmissionDate:  c.SubmissionDate,
		ConfigHash:      hash,
		ConfigTimestamp: c.ConfigTimestamp,
	}
}
