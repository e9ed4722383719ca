package cfg

// Default returns a Config populated with the same defaults BindFlags
// registers, for callers (tests, cmd/ckptsim) that construct a Config
// directly instead of going through viper/pflag.
func Default() Config {
	return Config{
		Snapshot: SnapshotConfig{
			Mode:             "hybrid",
			LogModeOccupancy: 0.75,
		},
		Queue: QueueConfig{
			FossilEvery: 16,
		},
		Logging: LoggingConfig{
			Severity:        "INFO",
			Format:          "json",
			MaxFileSizeMB:   100,
			BackupFileCount: 2,
			Compress:        true,
		},
		Metrics: MetricsConfig{
			Exporter: "noop",
		},
	}
}
