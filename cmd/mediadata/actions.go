package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/JonMunkholm/mediadata/internal/config"
	"github.com/JonMunkholm/mediadata/internal/core"
	"github.com/JonMunkholm/mediadata/internal/media"
	"github.com/JonMunkholm/mediadata/internal/provider"
	"github.com/JonMunkholm/mediadata/internal/tabular"
)

func normalizeAction(c *cli.Context) error {
	in, closeIn, err := openInput(c.Args().First())
	if err != nil {
		return err
	}
	defer closeIn()

	text, err := core.ReadPayloadText(in, 0)
	if err != nil {
		return err
	}

	table, preview := core.NormalizeText(text)
	return withOutput(c.String("output"), func(w io.Writer) error {
		if c.Bool("preview") {
			_, err := fmt.Fprintln(w, tabular.Stringify(preview))
			return err
		}
		if table == nil {
			return core.ErrNoStructuredData
		}
		return writeTable(w, c.String("format"), table)
	})
}

func analyzeAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("analyze: FILE is required", 2)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	frames := cfg.Media.FrameCount
	if c.IsSet("frames") {
		frames = c.Int("frames")
	}

	service, err := core.NewService(core.Options{
		Provider:   newProvider(cfg),
		Sampler:    media.NewFFmpegSampler(cfg.Media.FFmpegPath, cfg.Media.FFprobePath),
		FrameCount: frames,
		Image: media.ImageOptions{
			MaxWidth: cfg.Media.ImageMaxWidth,
			Quality:  cfg.Media.ImageQuality,
			AutoCrop: cfg.Media.AutoCrop,
		},
		MaxFileBytes: cfg.Media.MaxFileSize,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, cfg.Server.AnalysisTimeout)
	defer cancel()

	res, err := service.Analyze(ctx, core.MediaUpload{
		FileName:     filepath.Base(path),
		MimeType:     detectMIME(path, data),
		Data:         data,
		Instructions: c.String("instructions"),
		AutoCrop:     c.Bool("auto-crop"),
	})
	if err != nil {
		return err
	}

	table, err := service.BuildTable(res.SessionID)
	if errors.Is(err, core.ErrNoStructuredData) {
		// Nothing tabular; show what the model said.
		return withOutput(c.String("output"), func(w io.Writer) error {
			_, err := fmt.Fprintln(w, tabular.Stringify(res.Preview))
			return err
		})
	}
	if err != nil {
		return err
	}
	return withOutput(c.String("output"), func(w io.Writer) error {
		return writeTable(w, c.String("format"), table)
	})
}

func modelsAction(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	models, err := newProvider(cfg).ListModels(c.Context)
	if err != nil {
		return err
	}
	for _, m := range models {
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", m.Name, m.DisplayName)
	}
	return nil
}

func newProvider(cfg *config.Config) *provider.Gemini {
	return provider.NewGemini(provider.Options{
		APIKey:          cfg.Provider.APIKey,
		BaseURL:         cfg.Provider.BaseURL,
		Model:           cfg.Provider.Model,
		Fallbacks:       cfg.Provider.Fallbacks,
		Temperature:     cfg.Provider.Temperature,
		MaxOutputTokens: cfg.Provider.MaxOutputTokens,
		MaxAttempts:     cfg.Provider.MaxAttempts,
		RetryDelay:      cfg.Provider.RetryDelay,
		Gate:            core.NewLimiter(cfg.Provider.MaxConcurrent, cfg.Server.AnalysisTimeout),
	})
}

// detectMIME prefers the file extension and falls back to sniffing.
func detectMIME(path string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
	}
	return http.DetectContentType(data)
}

// openInput opens path, or stdin when path is empty or "-".
func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// withOutput runs fn against the named file, or stdout when path is empty.
func withOutput(path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
