// Package cli - интерактивная консоль администратора поверх commands.Executor.
// Сервис стартует фоном, читает строки из readline и отвечает в консоль,
// не разрывая строку ввода. Start/Stop идемпотентны.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/term"

	"telegram-musicbot/internal/domain/commands"
	"telegram-musicbot/internal/infra/logger"
	"telegram-musicbot/internal/infra/pr"
)

// commandDescriptor описывает одну CLI-команду: её имя и краткое описание для help.
type commandDescriptor struct {
	name        string
	args        string
	description string
}

// Имена должны совпадать с кейсами в execute().
var commandDescriptors = []commandDescriptor{
	{name: "help", description: "Show available commands with short descriptions"},
	{name: "stats", description: "Show resolver, cache and upload counters"},
	{name: "lookup", args: "<id>", description: "Show cached channel links and local files of a track"},
	{name: "forget", args: "<id>", description: "Drop the cache entry of a track"},
	{name: "version", description: "Print bot version"},
	{name: "exit", description: "Stop CLI and terminate the service"},
}

const commandTimeout = 15 * time.Second

var errUnknownCommand = errors.New("unknown command")

// Interactive сообщает, подключён ли stdin к терминалу. Без терминала консоль не нужна.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) // #nosec G115
}

// Service инкапсулирует CLI и встраивается в жизненный цикл приложения.
type Service struct {
	exec      commands.Executor
	stopApp   context.CancelFunc // exit и Ctrl-C на пустой строке
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	onceStart sync.Once
	onceStop  sync.Once
}

// NewService создаёт CLI-сервис.
func NewService(exec commands.Executor, stopApp context.CancelFunc) *Service {
	return &Service{exec: exec, stopApp: stopApp}
}

// Start запускает цикл чтения в отдельной горутине. Повторные вызовы игнорируются.
func (s *Service) Start(ctx context.Context) {
	s.onceStart.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.wg.Go(func() {
			s.run(runCtx)
		})
	})
}

// Stop прерывает readline, отменяет локальный контекст и ждёт завершения цикла.
func (s *Service) Stop() {
	s.onceStop.Do(func() {
		if rl := pr.Rl(); rl != nil {
			pr.InterruptReadline()
		}
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
	})
}

func (s *Service) run(ctx context.Context) {
	logger.Debug("CLI run started")
	rl := pr.Rl()
	if rl == nil {
		logger.Warn("CLI: readline is not initialized")
		return
	}
	pr.Println("CLI started. Enter commands:", joinCommandNames(commandDescriptors))
	pr.Dim("Press '?' or type 'help' for detailed descriptions.")
	installKeyHandlers(s.stopApp)

	defer func() { _ = rl.Close() }()

	for {
		if ctx.Err() != nil {
			logger.Debug("CLI: context canceled")
			return
		}
		line, err := rl.Readline()
		if err != nil {
			logger.Debug("CLI: deactivated (io.EOF)")
			return
		}

		cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
		out, exit, err := s.execute(cmdCtx, line)
		cancel()
		switch {
		case err != nil:
			pr.Fail("%s: %v", strings.TrimSpace(line), err)
		case out != "":
			pr.Println(out)
		}
		if exit {
			logger.Info("CLI: exit requested")
			if s.stopApp != nil {
				s.stopApp()
			}
			return
		}
	}
}

// execute разбирает строку и выполняет команду. exit=true завершает консоль.
func (s *Service) execute(ctx context.Context, line string) (out string, exit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", false, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "help", "?":
		return strings.Join(buildCommandHelpLines(commandDescriptors), "\n"), false, nil
	case "exit", "quit":
		return "", true, nil
	case "version":
		v, err := s.exec.Version(ctx)
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("%s v%s", v.Name, v.Version), false, nil
	case "stats":
		st, err := s.exec.Stats(ctx)
		if err != nil {
			return "", false, err
		}
		return formatStats(st), false, nil
	case "lookup", "forget":
		if len(args) != 1 {
			return "", false, errors.Errorf("usage: %s <id>", name)
		}
		if name == "forget" {
			if err := s.exec.Forget(ctx, args[0]); err != nil {
				return "", false, err
			}
			return "forgotten: " + args[0], false, nil
		}
		res, err := s.exec.Lookup(ctx, args[0])
		if err != nil {
			return "", false, err
		}
		return formatLookup(res), false, nil
	default:
		return "", false, errors.Wrap(errUnknownCommand, name)
	}
}

func formatStats(st *commands.StatsResult) string {
	lines := []string{
		fmt.Sprintf("Uptime:        %s", st.Uptime),
		fmt.Sprintf("Active chats:  %d", st.ActiveChats),
		fmt.Sprintf("Cached tracks: %d", st.CachedTracks),
		fmt.Sprintf("Resolver:      local=%d channel=%d api=%d/%d stale=%d failed=%d coalesced=%d in_flight=%d",
			st.Resolver.LocalHits, st.Resolver.ChannelHits, st.Resolver.APIPointer, st.Resolver.APIStream,
			st.Resolver.StaleLinks, st.Resolver.Failures, st.Resolver.Coalesced, st.Resolver.InFlight),
		fmt.Sprintf("Uploads:       running=%d ok=%d failed=%d skipped=%d",
			st.Uploads.Running, st.Uploads.Succeeded, st.Uploads.Failed, st.Uploads.Skipped),
	}
	return strings.Join(lines, "\n")
}

func formatLookup(res *commands.LookupResult) string {
	link := func(s string) string {
		if s == "" {
			return "<none>"
		}
		return s
	}
	return fmt.Sprintf("%s\n  audio: %s (local=%t)\n  video: %s (local=%t)",
		res.ID, link(res.Audio), res.AudioLocal, link(res.Video), res.VideoLocal)
}

// installKeyHandlers подключает обработчики клавиш readline:
//   - '?' печатает help, не добавляя символ в строку;
//   - Ctrl-C на пустой строке останавливает приложение;
//   - Ctrl-C на непустой строке очищает её.
func installKeyHandlers(stop context.CancelFunc) {
	rl := pr.Rl()
	if rl == nil || rl.Config == nil {
		return
	}

	prev := rl.Config.Listener
	rl.Config.SetListener(func(line []rune, pos int, key rune) ([]rune, int, bool) {
		if key == '?' {
			for _, text := range buildCommandHelpLines(commandDescriptors) {
				pr.Println(text)
			}
			if pos > 0 && pos <= len(line) {
				trimmed := append([]rune{}, line[:pos-1]...)
				trimmed = append(trimmed, line[pos:]...)
				return trimmed, pos - 1, true
			}
			return line, pos, true
		}
		if key == 3 { //nolint: mnd // Ctrl-C (ETX)
			if strings.TrimSpace(string(line)) == "" {
				if stop != nil {
					stop()
				}
				pr.InterruptReadline()
				return line, pos, true
			}
			return []rune{}, 0, true
		}
		if prev != nil {
			return prev.OnChange(line, pos, key)
		}
		return nil, 0, false
	})
}

func joinCommandNames(descriptors []commandDescriptor) string {
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.name)
	}
	return strings.Join(names, ", ")
}

// buildCommandHelpLines генерирует строки вида "<name> <args> - <description>".
func buildCommandHelpLines(descriptors []commandDescriptor) []string {
	lines := make([]string, 0, len(descriptors)+1)
	lines = append(lines, "Available commands:")
	for _, d := range descriptors {
		usage := strings.TrimSpace(d.name + " " + d.args)
		lines = append(lines, fmt.Sprintf("  %-12s - %s", usage, d.description))
	}
	return lines
}
