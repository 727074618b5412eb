// Package speech reads generated code aloud through a local text-to-speech command.
package speech

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/samsaffron/vibe-llm/internal/config"
)

// DefaultStartTimeout bounds how long the TTS process may take to launch.
const DefaultStartTimeout = 5 * time.Second

var (
	ErrBusy         = errors.New("speech: already reading")
	ErrEmpty        = errors.New("speech: nothing to read")
	ErrUnavailable  = errors.New("speech: no text-to-speech command found (install say, espeak-ng, espeak or spd-say)")
	ErrStartTimeout = errors.New("speech: timed out starting text-to-speech")
)

// Speaker reads text aloud. Speak blocks until reading finishes or ctx is cancelled.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Speaking() bool
}

// Engine describes how to invoke one TTS program. Text is always passed on stdin.
type Engine struct {
	Name string
	Args func(rate float64, lang string) []string
}

// baseWPM is the words-per-minute that maps to rate 1.0.
const baseWPM = 175

func wpm(rate float64) string {
	return strconv.Itoa(int(math.Round(baseWPM * rate)))
}

// Engines lists the supported programs in lookup order.
var Engines = []Engine{
	{Name: "say", Args: func(rate float64, _ string) []string {
		return []string{"-r", wpm(rate), "-f", "-"}
	}},
	{Name: "espeak-ng", Args: espeakArgs},
	{Name: "espeak", Args: espeakArgs},
	{Name: "spd-say", Args: func(rate float64, lang string) []string {
		r := int(math.Round((rate - 1) * 100))
		r = max(-100, min(100, r))
		args := []string{"-w", "-e", "-r", strconv.Itoa(r)}
		if lang != "" {
			args = append(args, "-l", strings.SplitN(lang, "-", 2)[0])
		}
		return args
	}},
}

func espeakArgs(rate float64, lang string) []string {
	args := []string{"--stdin", "-s", wpm(rate)}
	if lang != "" {
		args = append(args, "-v", strings.ToLower(lang))
	}
	return args
}

// CommandSpeaker runs a TTS engine as a child process, one reading at a time.
type CommandSpeaker struct {
	engine       Engine
	rate         float64
	lang         string
	startTimeout time.Duration
	log          *logrus.Entry

	mu       sync.Mutex
	speaking bool
}

// New picks the configured engine, or the first installed one.
func New(cfg config.SpeechConfig, log *logrus.Entry) (*CommandSpeaker, error) {
	engine, err := resolve(cfg.Command, exec.LookPath)
	if err != nil {
		return nil, err
	}
	return NewWithEngine(engine, cfg.Rate, cfg.Lang, log), nil
}

// NewWithEngine creates a speaker for a specific engine.
func NewWithEngine(engine Engine, rate float64, lang string, log *logrus.Entry) *CommandSpeaker {
	if rate <= 0 {
		rate = 1
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CommandSpeaker{
		engine:       engine,
		rate:         rate,
		lang:         lang,
		startTimeout: DefaultStartTimeout,
		log:          log.WithFields(logrus.Fields{"component": "speech", "engine": engine.Name}),
	}
}

func resolve(command string, lookPath func(string) (string, error)) (Engine, error) {
	if command != "" {
		for _, e := range Engines {
			if e.Name == command {
				if _, err := lookPath(command); err != nil {
					return Engine{}, fmt.Errorf("speech command %q: %w", command, err)
				}
				return e, nil
			}
		}
		// Unknown programs get the text on stdin and no flags.
		if _, err := lookPath(command); err != nil {
			return Engine{}, fmt.Errorf("speech command %q: %w", command, err)
		}
		return Engine{Name: command, Args: func(float64, string) []string { return nil }}, nil
	}
	for _, e := range Engines {
		if _, err := lookPath(e.Name); err == nil {
			return e, nil
		}
	}
	return Engine{}, ErrUnavailable
}

// Engine returns the program used for reading.
func (s *CommandSpeaker) Engine() string {
	return s.engine.Name
}

func (s *CommandSpeaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmpty
	}
	s.mu.Lock()
	if s.speaking {
		s.mu.Unlock()
		return ErrBusy
	}
	s.speaking = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.speaking = false
		s.mu.Unlock()
	}()

	cmd := exec.CommandContext(ctx, s.engine.Name, s.engine.Args(s.rate, s.lang)...)
	cmd.Stdin = strings.NewReader(text)

	started := make(chan error, 1)
	go func() { started <- cmd.Start() }()

	timer := time.NewTimer(s.startTimeout)
	defer timer.Stop()
	select {
	case err := <-started:
		if err != nil {
			return fmt.Errorf("start %s: %w", s.engine.Name, err)
		}
	case <-timer.C:
		go func() {
			if err := <-started; err == nil {
				_ = cmd.Process.Kill()
				_ = cmd.Wait()
			}
		}()
		return ErrStartTimeout
	}

	s.log.WithField("chars", len(text)).Debug("reading aloud")
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w", s.engine.Name, err)
	}
	return nil
}
