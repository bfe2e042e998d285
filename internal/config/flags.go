package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "crankfeed [flags] <artifact-glob>...",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

func configureFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Pipeline flags
	flags.Bool("series", false, "Run artifacts one at a time instead of all at once")
	flags.Bool("report", false, "Report on each artifact after its run")
	flags.String("report-type", "json", "Report type requested from the engine (json, text or yaml)")
	flags.String("report-file", "", "Append every JSON report to this file")
	flags.StringToStringP("option", "o", nil, "Engine option in key=value form (repeatable)")

	// Logging flags
	flags.String("log-level", "info", "Log level: debug, info, warn or error")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "", "Service name reported in traces")
	flags.Float64("tracing-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
}

func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies explicitly set flags over config file values.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("series") {
		series, err := fs.GetBool("series")
		if err != nil {
			return err
		}
		if series {
			cfg.Mode = ModeSeries
		} else {
			cfg.Mode = ModeParallel
		}
	}
	if fs.Changed("report") {
		val, err := fs.GetBool("report")
		if err != nil {
			return err
		}
		cfg.Report = val
	}
	if fs.Changed("report-type") {
		val, err := fs.GetString("report-type")
		if err != nil {
			return err
		}
		cfg.ReportType = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("report-file") {
		val, err := fs.GetString("report-file")
		if err != nil {
			return err
		}
		cfg.ReportFile = strings.TrimSpace(val)
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("option") {
		pairs, err := fs.GetStringToString("option")
		if err != nil {
			return err
		}
		mergeFlagOptions(cfg, pairs)
	}
	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	return nil
}

// mergeFlagOptions folds --option pairs into the engine options. A malformed
// options value from the config file is left alone so the pipeline factory
// reports it.
func mergeFlagOptions(cfg *Config, pairs map[string]string) {
	if len(pairs) == 0 {
		return
	}
	merged := map[string]interface{}{}
	switch existing := cfg.Options.(type) {
	case nil:
	case map[string]interface{}:
		for k, v := range existing {
			merged[k] = v
		}
	default:
		return
	}
	for k, v := range pairs {
		merged[strings.TrimSpace(k)] = v
	}
	cfg.Options = merged
	cfg.OptionsSet = true
}
