package sdl

import (
	"log/slog"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/veandco/go-sdl2/sdl"

	"chip8emu/internal/hal"
	"chip8emu/internal/vm"
)

// Shell is the SDL2 frontend: a window with a streaming texture scaled up
// from the 64x32 frame, the usual 1234/qwer/asdf/zxcv keypad mapping and
// a queued square wave for the sound timer.
type Shell struct {
	opts hal.Options

	window          *sdl.Window
	renderer        *sdl.Renderer
	texture         *sdl.Texture
	backBuffer      []uint32
	backBufferPitch int

	audio   sdl.AudioDeviceID
	tone    *hal.ToneWave
	toneBuf []byte
}

func New(opts hal.Options) (*Shell, error) {
	opts = opts.Normalized()

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_AUDIO | sdl.INIT_EVENTS); err != nil {
		return nil, errors.Wrap(err, "failed to init sdl")
	}

	windowWidth := int32(vm.ScreenWidth * opts.WindowScale)
	windowHeight := int32(vm.ScreenHeight * opts.WindowScale)

	window, err := sdl.CreateWindow("CHIP-8", sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, windowWidth, windowHeight, sdl.WINDOW_SHOWN|sdl.WINDOW_UTILITY)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sdl window")
	}
	slog.Debug("hal: create window")
	window.Show()

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sdl renderer")
	}
	if err = renderer.SetLogicalSize(windowWidth, windowHeight); err != nil {
		return nil, errors.Wrap(err, "failed to resize sdl renderer")
	}
	slog.Debug("hal: create renderer")

	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_ARGB8888, sdl.TEXTUREACCESS_STREAMING, vm.ScreenWidth, vm.ScreenHeight)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sdl texture")
	}
	slog.Debug("hal: create texture")

	spec := sdl.AudioSpec{
		Freq:     hal.ToneSampleRate,
		Format:   sdl.AUDIO_S16LSB,
		Channels: 2,
		Samples:  512,
	}
	audio, err := sdl.OpenAudioDevice("", false, &spec, nil, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sdl audio device")
	}
	slog.Debug("hal: open audio device")

	return &Shell{
		opts:            opts,
		window:          window,
		renderer:        renderer,
		texture:         texture,
		backBuffer:      make([]uint32, vm.ScreenWidth*vm.ScreenHeight),
		backBufferPitch: int(vm.ScreenWidth) * int(unsafe.Sizeof(uint32(0))),
		audio:           audio,
		tone:            hal.NewToneWave(hal.ToneFrequency),
		toneBuf:         make([]byte, 4096),
	}, nil
}

func (s *Shell) Shutdown() {
	sdl.CloseAudioDevice(s.audio)

	if err := s.texture.Destroy(); err != nil {
		slog.Error("failed to destroy sdl texture", "err", err)
	}

	if err := s.renderer.Destroy(); err != nil {
		slog.Error("failed to destroy sdl renderer", "err", err)
	}

	if err := s.window.Destroy(); err != nil {
		slog.Error("failed to destroy sdl window", "err", err)
	}

	sdl.Quit()
}

func (s *Shell) Run(machine *vm.VM) error {
	const frameDuration = time.Second / 60

	if err := s.render(machine.Frame()); err != nil {
		return err
	}

	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		if err := s.pollInput(machine); err != nil {
			return err
		}

		for i := 0; i < s.opts.CyclesPerFrame; i++ {
			if err := machine.Step(); err != nil {
				return errors.Wrap(err, "machine fault")
			}
		}

		machine.TickTimers()

		if machine.TakeDrawFlag() {
			if err := s.render(machine.Frame()); err != nil {
				return err
			}
		}

		if err := s.playTone(machine.SoundTimer() > 0); err != nil {
			return err
		}

		<-ticker.C
	}
}

func (s *Shell) pollInput(machine *vm.VM) error {
	for e := sdl.PollEvent(); e != nil; e = sdl.PollEvent() {
		switch e.GetType() {
		case sdl.QUIT:
			slog.Debug("hal: exit requested")
			return hal.ErrQuit

		case sdl.KEYDOWN:
			ke := e.(*sdl.KeyboardEvent)
			if ke.Keysym.Scancode == sdl.SCANCODE_BACKSPACE {
				return hal.ErrReboot
			}

			if key, ok := keyMap(ke); ok {
				machine.SetKeyState(key, true)
			}

		case sdl.KEYUP:
			if key, ok := keyMap(e.(*sdl.KeyboardEvent)); ok {
				machine.SetKeyState(key, false)
			}
		}
	}

	return nil
}

func keyMap(e *sdl.KeyboardEvent) (vm.Key, bool) {
	// Physical                Logical
	// ================        =================
	// | 1 | 2 | 3 | 4 |       | 1 | 2 | 3 | C |
	// | q | w | e | r |       | 4 | 5 | 6 | D |
	// | a | s | d | f |  <=>  | 7 | 8 | 9 | E |
	// | z | x | c | v |       | A | 0 | B | F |
	// ================        =================

	switch e.Keysym.Scancode {
	case sdl.SCANCODE_X:
		return vm.Key0, true
	case sdl.SCANCODE_1:
		return vm.Key1, true
	case sdl.SCANCODE_2:
		return vm.Key2, true
	case sdl.SCANCODE_3:
		return vm.Key3, true
	case sdl.SCANCODE_Q:
		return vm.Key4, true
	case sdl.SCANCODE_W:
		return vm.Key5, true
	case sdl.SCANCODE_E:
		return vm.Key6, true
	case sdl.SCANCODE_A:
		return vm.Key7, true
	case sdl.SCANCODE_S:
		return vm.Key8, true
	case sdl.SCANCODE_D:
		return vm.Key9, true
	case sdl.SCANCODE_Z:
		return vm.KeyA, true
	case sdl.SCANCODE_C:
		return vm.KeyB, true
	case sdl.SCANCODE_4:
		return vm.KeyC, true
	case sdl.SCANCODE_R:
		return vm.KeyD, true
	case sdl.SCANCODE_F:
		return vm.KeyE, true
	case sdl.SCANCODE_V:
		return vm.KeyF, true
	default:
		return 0, false
	}
}

func (s *Shell) render(frame []uint8) error {
	const (
		bgColor = uint32(0x000000)
		fgColor = uint32(0xbea700)
	)

	for i := range frame {
		color := bgColor
		if frame[i] != 0 {
			color = fgColor
		}

		s.backBuffer[i] = color
	}

	backBufferPtr := unsafe.Pointer(&s.backBuffer[0])
	if err := s.texture.Update(nil, backBufferPtr, s.backBufferPitch); err != nil {
		return errors.Wrap(err, "failed to update sdl texture")
	}

	if err := s.renderer.Clear(); err != nil {
		return errors.Wrap(err, "failed to clear sdl renderer")
	}

	if err := s.renderer.Copy(s.texture, nil, nil); err != nil {
		return errors.Wrap(err, "failed to copy sdl texture to renderer")
	}

	s.renderer.Present()
	return nil
}

func (s *Shell) playTone(on bool) error {
	if !on {
		sdl.PauseAudioDevice(s.audio, true)
		return nil
	}

	// Keep roughly a quarter second queued so the tone survives frame
	// jitter.
	const lowWater = hal.ToneSampleRate
	for sdl.GetQueuedAudioSize(s.audio) < lowWater {
		n, _ := s.tone.Read(s.toneBuf)
		if err := sdl.QueueAudio(s.audio, s.toneBuf[:n]); err != nil {
			return errors.Wrap(err, "failed to queue audio")
		}
	}

	sdl.PauseAudioDevice(s.audio, false)
	return nil
}
