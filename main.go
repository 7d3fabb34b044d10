package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"chip8emu/internal/hal"
	"chip8emu/internal/hal/eb"
	"chip8emu/internal/hal/sdl"
	"chip8emu/internal/vm"
)

func main() {
	cmd := &cobra.Command{
		Use:           fmt.Sprintf("%s PATH_TO_ROM_FILE", filepath.Base(os.Args[0])),
		Short:         "Run emulator",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
	}

	verbose := cmd.Flags().BoolP("verbose", "v", false, "enable verbose logging")
	backend := cmd.Flags().String("backend", "sdl", "frontend backend (sdl or ebiten)")
	profile := cmd.Flags().String("profile", "default", "quirks profile (default or cosmac)")
	cycles := cmd.Flags().Int("cycles", hal.DefaultCyclesPerFrame, "instructions executed per 60Hz frame")
	scale := cmd.Flags().Int("scale", hal.DefaultWindowScale, "window scale factor")

	cmd.RunE = func(_ *cobra.Command, args []string) error {
		loggerOpts := &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}
		if *verbose {
			loggerOpts.Level = slog.LevelDebug
		}

		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, loggerOpts)))

		quirks, err := vm.QuirksByName(*profile)
		if err != nil {
			return err
		}

		path := args[0]
		bs, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "unable to load file %q", path)
		}

		// Validate the ROM before any window opens.
		machine := vm.New(vm.WithQuirks(quirks))
		if err = machine.LoadProgram(bs); err != nil {
			return errors.Wrapf(err, "unable to load ROM %q", path)
		}

		opts := hal.Options{
			CyclesPerFrame: *cycles,
			WindowScale:    *scale,
		}

		var shell hal.Shell
		switch *backend {
		case "sdl":
			shell, err = sdl.New(opts)
		case "ebiten":
			shell, err = eb.New(opts)
		default:
			return fmt.Errorf("unknown backend %q", *backend)
		}
		if err != nil {
			return errors.Wrap(err, "unable to initialize frontend")
		}
		defer shell.Shutdown()

		for {
			err = shell.Run(machine)

			if errors.Is(err, hal.ErrQuit) || err == nil {
				return nil
			}

			if errors.Is(err, hal.ErrReboot) {
				slog.Info("reboot")

				machine = vm.New(vm.WithQuirks(quirks))
				if err = machine.LoadProgram(bs); err != nil {
					return errors.Wrapf(err, "unable to load ROM %q", path)
				}
				continue
			}

			return err
		}
	}

	cmd.SetArgs(os.Args[1:])
	if err := cmd.Execute(); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}
