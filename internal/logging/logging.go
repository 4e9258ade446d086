package logging

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// SubSystem tags every record with the part of the program that emitted it.
type SubSystem string

const (
	Config  SubSystem = "config"
	Dataset SubSystem = "dataset"
	Model   SubSystem = "model"
	Trainer SubSystem = "trainer"
	Render  SubSystem = "render"
)

// Setup installs the default logger. format is "text" or "json".
func Setup(w io.Writer, level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// Banner logs the host the run executes on.
func Banner(subSystem SubSystem, keyvals ...interface{}) {
	kv := []interface{}{
		"go", runtime.Version(),
		"cpu", cpuid.CPU.BrandName,
		"cores", cpuid.CPU.PhysicalCores,
		"threads", runtime.NumCPU(),
		"avx2", cpuid.CPU.Supports(cpuid.AVX2),
		"fma", cpuid.CPU.Supports(cpuid.FMA3),
	}
	Info("starting", subSystem, append(kv, keyvals...)...)
}

func Warn(msg string, subSystem SubSystem, keyvals ...interface{}) {
	withSubsystem := append([]interface{}{"subsystem", subSystem}, keyvals...)
	slog.Warn(msg, withSubsystem...)
}

func Info(msg string, subSystem SubSystem, keyvals ...interface{}) {
	withSubsystem := append([]interface{}{"subsystem", subSystem}, keyvals...)
	slog.Info(msg, withSubsystem...)
}

func Error(msg string, subSystem SubSystem, keyvals ...interface{}) {
	withSubsystem := append([]interface{}{"subsystem", subSystem}, keyvals...)
	slog.Error(msg, withSubsystem...)
}

func Debug(msg string, subSystem SubSystem, keyvals ...interface{}) {
	withSubsystem := append([]interface{}{"subsystem", subSystem}, keyvals...)
	slog.Debug(msg, withSubsystem...)
}
