// Package logging builds the slog logger used by the tmpldb binaries.
package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/tmpldb/tmpldb/internal/config"
)

// New returns a logger writing to out. The text format uses tint, coloured
// only when out is a terminal and colour is not disabled; the json format
// uses slog's JSON handler. The returned LevelVar adjusts the level at run
// time.
func New(out *os.File, cfg config.LogConfig) (*slog.Logger, *slog.LevelVar, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	lv := &slog.LevelVar{}
	lv.Set(level)

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lv})), lv, nil
	}

	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	handler := tint.NewHandler(colorable.NewColorable(out), &tint.Options{
		Level:      lv,
		TimeFormat: "15:04:05.000",
		NoColor:    cfg.NoColor || !isatty.IsTerminal(out.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			if d, ok := a.Value.Any().(time.Duration); ok && d == 0 {
				return slog.Attr{}
			}
			return a
		},
	})
	return slog.New(handler), lv, nil
}
