package cli

import (
	"context"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(cfg *Config) *Command {
	return &Command{
		Name:  "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			execPrintConfig(o, cfg)

			return nil
		},
	}
}

func execPrintConfig(o *IO, cfg *Config) {
	for _, line := range FormatConfig(*cfg) {
		o.Println(line)
	}

	o.Println("")
	o.Println("# sources")

	src := cfg.Sources
	if src.Global == "" && src.Project == "" && src.DotEnv == "" {
		o.Println("(defaults only)")

		return
	}

	if src.Global != "" {
		o.Field("global_config", src.Global)
	}

	if src.Project != "" {
		o.Field("project_config", src.Project)
	}

	if src.DotEnv != "" {
		o.Field("dotenv", src.DotEnv)
	}
}
