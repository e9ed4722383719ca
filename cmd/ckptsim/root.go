// Copyright 2025 Google LLC
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

// Command ckptsim drives the checkpoint/restore engine against a
// synthetic LP population, to exercise the full dependency stack
// end-to-end the way gcsfuse's cmd/root.go exercises its mount flow.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rootsim-go/ckptengine/cfg"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	runConfig     cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "ckptsim [flags]",
	Short: "Exercise the checkpoint/restore engine against a synthetic LP population",
	Long: `ckptsim drives a population of logical processes through
allocate/write/checkpoint cycles with periodic fossil collection. It
performs no restores and prints no per-LP report. It is a demonstration
host, not a simulation kernel.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		if err := runConfig.Validate(); err != nil {
			return err
		}
		lps, err := cmd.Flags().GetInt("num-lps")
		if err != nil {
			return err
		}
		rounds, err := cmd.Flags().GetInt("rounds")
		if err != nil {
			return err
		}
		return run(runConfig, lps, rounds)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file.")
	rootCmd.Flags().Int("num-lps", 8, "Number of synthetic logical processes to simulate.")
	rootCmd.Flags().Int("rounds", 50, "Number of allocate/write/checkpoint rounds to run per LP.")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	runConfig = cfg.Default()
	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&runConfig)
		return
	}
	viper.SetConfigFile(cfgFile)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("error while reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&runConfig)
}
