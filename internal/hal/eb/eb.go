// Package eb is the ebiten frontend. Unlike the SDL shell it does not own
// the frame loop: ebiten calls Update at 60 TPS, which doubles as the
// machine's frame cadence.
package eb

import (
	"log/slog"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/pkg/errors"

	"chip8emu/internal/hal"
	"chip8emu/internal/vm"
)

type Shell struct {
	opts   hal.Options
	player *audio.Player
}

func New(opts hal.Options) (*Shell, error) {
	ctx := audio.NewContext(hal.ToneSampleRate)

	player, err := ctx.NewPlayer(hal.NewToneWave(hal.ToneFrequency))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create audio player")
	}

	return &Shell{
		opts:   opts.Normalized(),
		player: player,
	}, nil
}

func (s *Shell) Shutdown() {
	if err := s.player.Close(); err != nil {
		slog.Error("failed to close audio player", "err", err)
	}
}

func (s *Shell) Run(machine *vm.VM) error {
	ebiten.SetWindowSize(vm.ScreenWidth*s.opts.WindowScale, vm.ScreenHeight*s.opts.WindowScale)
	ebiten.SetWindowTitle("CHIP-8")

	g := &game{
		shell:   s,
		machine: machine,
		canvas:  ebiten.NewImage(vm.ScreenWidth, vm.ScreenHeight),
		pixels:  make([]byte, vm.ScreenWidth*vm.ScreenHeight*4),
	}

	if err := ebiten.RunGame(g); err != nil {
		return err
	}

	return hal.ErrQuit
}

type game struct {
	shell   *Shell
	machine *vm.VM
	canvas  *ebiten.Image
	pixels  []byte // RGBA scratch for WritePixels
}

var keypad = [vm.KeyCount]ebiten.Key{
	vm.Key0: ebiten.KeyX,
	vm.Key1: ebiten.KeyDigit1,
	vm.Key2: ebiten.KeyDigit2,
	vm.Key3: ebiten.KeyDigit3,
	vm.Key4: ebiten.KeyQ,
	vm.Key5: ebiten.KeyW,
	vm.Key6: ebiten.KeyE,
	vm.Key7: ebiten.KeyA,
	vm.Key8: ebiten.KeyS,
	vm.Key9: ebiten.KeyD,
	vm.KeyA: ebiten.KeyZ,
	vm.KeyB: ebiten.KeyC,
	vm.KeyC: ebiten.KeyDigit4,
	vm.KeyD: ebiten.KeyR,
	vm.KeyE: ebiten.KeyF,
	vm.KeyF: ebiten.KeyV,
}

func (g *game) Update() error {
	if ebiten.IsKeyPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	for i, key := range keypad {
		g.machine.SetKeyState(vm.Key(i), ebiten.IsKeyPressed(key))
	}

	for i := 0; i < g.shell.opts.CyclesPerFrame; i++ {
		if err := g.machine.Step(); err != nil {
			return errors.Wrap(err, "machine fault")
		}
	}

	g.machine.TickTimers()

	if g.machine.SoundTimer() > 0 {
		g.shell.player.Play()
	} else {
		g.shell.player.Pause()
	}

	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	const (
		fgR, fgG, fgB = 0xbe, 0xa7, 0x00
	)

	frame := g.machine.Frame()
	for i, pixel := range frame {
		if pixel != 0 {
			g.pixels[i*4] = fgR
			g.pixels[i*4+1] = fgG
			g.pixels[i*4+2] = fgB
		} else {
			g.pixels[i*4] = 0
			g.pixels[i*4+1] = 0
			g.pixels[i*4+2] = 0
		}
		g.pixels[i*4+3] = 0xFF
	}

	g.canvas.WritePixels(g.pixels)
	screen.DrawImage(g.canvas, nil)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return vm.ScreenWidth, vm.ScreenHeight
}
