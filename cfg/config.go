// Copyright 2024 Google Inc. All Rights Reserved.
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

// Package cfg holds the checkpoint engine's runtime configuration: flags
// are registered against a pflag.FlagSet and bound into viper, the way
// the teacher's generated cfg package wires its Config struct. Unlike
// the teacher's cfg, this one is hand-written rather than generated from
// a params.yaml — there is no generator in this tree to drive.
package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the engine's full runtime configuration.
type Config struct {
	Snapshot SnapshotConfig `yaml:"snapshot"`

	Queue QueueConfig `yaml:"queue"`

	Logging LoggingConfig `yaml:"logging"`

	Metrics MetricsConfig `yaml:"metrics"`
}

// SnapshotConfig controls how Checkpointer decides between full and
// incremental logs.
type SnapshotConfig struct {
	// Mode is "full" or "hybrid". Hybrid takes incrementals between
	// full logs; full always takes a full log.
	Mode string `yaml:"mode"`

	// LogModeOccupancy is the use-bitmap occupancy fraction (0..1)
	// above which an area's LOG_MODE bit should be set by the host
	// allocator, favoring a wholesale dump over bitmap-walking.
	LogModeOccupancy float64 `yaml:"log-mode-occupancy" mapstructure:"log-mode-occupancy"`
}

// QueueConfig controls fossil collection of the per-LP checkpoint
// queues.
type QueueConfig struct {
	// FossilEvery is how many checkpoints accumulate between fossil
	// collection passes.
	FossilEvery int `yaml:"fossil-every" mapstructure:"fossil-every"`
}

// LoggingConfig controls the engine's structured logging sink.
type LoggingConfig struct {
	FilePath string `yaml:"file-path" mapstructure:"file-path"`

	Severity string `yaml:"severity"`

	Format string `yaml:"format"`

	MaxFileSizeMB int `yaml:"max-file-size-mb" mapstructure:"max-file-size-mb"`

	BackupFileCount int `yaml:"backup-file-count" mapstructure:"backup-file-count"`

	Compress bool `yaml:"compress"`
}

// MetricsConfig selects the metrics.Handle implementation wired into
// the Checkpointer/Restorer.
type MetricsConfig struct {
	// Exporter is one of "otel", "prometheus" (alias for "otel"), "noop".
	Exporter string `yaml:"exporter"`
}

// BindFlags registers the engine's command-line flags against flagSet
// and binds each into viper under the matching dotted key, mirroring
// the teacher's generated BindFlags.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("snapshot-mode", "", "hybrid", "Checkpoint mode: full or hybrid.")
	if err = viper.BindPFlag("snapshot.mode", flagSet.Lookup("snapshot-mode")); err != nil {
		return err
	}

	flagSet.Float64P("snapshot-log-mode-occupancy", "", 0.75, "Use-bitmap occupancy threshold for an area's LOG_MODE bit; recorded in the config, not read by ckptsim or the engine.")
	if err = viper.BindPFlag("snapshot.log-mode-occupancy", flagSet.Lookup("snapshot-log-mode-occupancy")); err != nil {
		return err
	}

	flagSet.IntP("queue-fossil-every", "", 16, "Checkpoints between fossil collection passes.")
	if err = viper.BindPFlag("queue.fossil-every", flagSet.Lookup("queue-fossil-every")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to the log file. Empty logs to stderr.")
	if err = viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "INFO", "Minimum severity logged: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "json", "Log output format: text or json.")
	if err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.IntP("log-max-file-size-mb", "", 100, "Log file size in MB before rotation.")
	if err = viper.BindPFlag("logging.max-file-size-mb", flagSet.Lookup("log-max-file-size-mb")); err != nil {
		return err
	}

	flagSet.IntP("log-backup-file-count", "", 2, "Number of rotated log files retained.")
	if err = viper.BindPFlag("logging.backup-file-count", flagSet.Lookup("log-backup-file-count")); err != nil {
		return err
	}

	flagSet.BoolP("log-compress", "", true, "Compress rotated log files.")
	if err = viper.BindPFlag("logging.compress", flagSet.Lookup("log-compress")); err != nil {
		return err
	}

	flagSet.StringP("metrics-exporter", "", "noop", "Metrics exporter: otel, prometheus, or noop.")
	if err = viper.BindPFlag("metrics.exporter", flagSet.Lookup("metrics-exporter")); err != nil {
		return err
	}

	return nil
}
