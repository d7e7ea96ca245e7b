// Command lama-gvm loads a Lama bytecode image and executes it, following
// the teacher's flag-driven CLI and top-level panic-recovery discipline
// (main.go in the teacher repo).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ktstephano-labs/lama-gvm/bytecode"
	"github.com/ktstephano-labs/lama-gvm/env"
	"github.com/ktstephano-labs/lama-gvm/interp"
	"github.com/ktstephano-labs/lama-gvm/stats"
	"github.com/ktstephano-labs/lama-gvm/vmconfig"
	"github.com/ktstephano-labs/lama-gvm/vmerr"
)

var (
	configPath = flag.String("config", "", "path to a YAML config file")
	traceFlag  = flag.Bool("trace", false, "print each instruction before it executes")
	statsFlag  = flag.Bool("stats", false, "print opcode frequency and disassembly, then exit without running")
)

func main() {
	flag.Parse()
	opts := &slog.HandlerOptions{}
	if *traceFlag {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, opts))

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: lama-gvm [-config path] [-trace] [-stats] <image> [program args...]")
		os.Exit(1)
	}
	imagePath, programArgs := args[0], args[1:]

	if err := run(logger, imagePath, programArgs); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, imagePath string, programArgs []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("interpreter panicked", "recovered", r)
			err = fmt.Errorf("%w: %v", vmerr.ErrInvalidValueAccess, r)
		}
	}()

	cfg, err := vmconfig.Load(*configPath)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	prog, err := bytecode.LoadImage(raw)
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}
	logger.Debug("loaded program",
		"instructions", len(prog.Instructions),
		"globals", prog.GlobalAreaSize,
		"fingerprint", fmt.Sprintf("%x", prog.Fingerprint),
	)

	if *statsFlag {
		for _, c := range stats.Frequency(prog) {
			fmt.Printf("%-10s %d\n", c.Op, c.Count)
		}
		fmt.Print(stats.Disassemble(prog))
		return nil
	}

	host := buildEnvironment(cfg)
	m := interp.New(prog, host, cfg.StackCapacity)
	if *traceFlag {
		m.Trace = func(ip bytecode.InstrPtr, instr bytecode.Instruction) {
			logger.Debug("step", "ip", ip, "op", instr.Op)
		}
	}

	if err := m.Run(programArgs); err != nil {
		if *traceFlag {
			ip, op, line := m.FailureContext()
			fmt.Fprintf(os.Stderr, "at instruction %d (%s), line %d\n", ip, op, line)
		}
		if cfg.TraceOnError {
			logger.Error("run failed", "state", m.String())
		}
		return err
	}
	return nil
}

func buildEnvironment(cfg vmconfig.Config) env.Environment {
	switch cfg.Environment {
	case vmconfig.EnvNative:
		in := bufio.NewReader(os.Stdin)
		out := bufio.NewWriter(os.Stdout)
		return env.NewNative(env.NewStdioAllocator(in, out))
	default:
		return env.NewPure(os.Stdin, os.Stdout)
	}
}
