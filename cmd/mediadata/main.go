// Command mediadata normalizes model output and analyzes media files from
// the command line, using the same pipeline as the web server.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/JonMunkholm/mediadata/internal/logging"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "mediadata",
		Usage: "turn media and model output into tables",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			logging.Setup(c.String("log-level"), "text")
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "normalize",
				Usage:     "normalize JSON or key-value text into a table",
				ArgsUsage: "[FILE]",
				Flags: append(outputFlags(),
					&cli.BoolFlag{Name: "preview", Usage: "print the redacted payload instead of the table"},
				),
				Action: normalizeAction,
			},
			{
				Name:      "analyze",
				Usage:     "analyze an image or video with the configured model",
				ArgsUsage: "FILE",
				Flags: append(outputFlags(),
					&cli.StringFlag{Name: "instructions", Aliases: []string{"i"}, Usage: "extra instructions for the model"},
					&cli.IntFlag{Name: "frames", Usage: "frames to sample from a video (default from MEDIA_FRAME_COUNT)"},
					&cli.BoolFlag{Name: "auto-crop", Usage: "trim near-white borders before analysis"},
				),
				Action: analyzeAction,
			},
			{
				Name:   "models",
				Usage:  "list models available to the configured API key",
				Action: modelsAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Value:   formatCSV,
			Usage:   "csv, json, yaml or xlsx",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "write to this file instead of stdout",
		},
	}
}
