// Package pr - вывод для интерактивной консоли администратора.
// После Init stdout/stderr указывают на буферы readline, поэтому логи и ответы
// команд не разрывают строку ввода. До Init всё идёт в os.Stdout/os.Stderr.
package pr

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/kr/pretty"
)

var (
	mu     sync.Mutex
	rl     *readline.Instance
	out    io.Writer = os.Stdout
	errOut io.Writer = os.Stderr

	// cancelableIn закрывается при остановке, чтобы Readline вернул io.EOF.
	cancelableIn io.Closer

	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.Faint)
)

// Init поднимает readline на отменяемом stdin с заданным приглашением.
func Init(prompt string) error {
	cs := readline.NewCancelableStdin(os.Stdin)
	inst, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		Stdin:           cs,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		_ = cs.Close()
		return err
	}

	mu.Lock()
	rl = inst
	cancelableIn = cs
	out = inst.Stdout()
	errOut = inst.Stderr()
	mu.Unlock()
	return nil
}

// InterruptReadline закрывает stdin, Readline получает io.EOF.
func InterruptReadline() {
	mu.Lock()
	c := cancelableIn
	mu.Unlock()
	if c != nil {
		_ = c.Close()
	}
}

// Rl возвращает активный readline или nil до Init.
func Rl() *readline.Instance {
	mu.Lock()
	defer mu.Unlock()
	return rl
}

func Stdout() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return out
}

func Stderr() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return errOut
}

func Println(a ...any)               { fmt.Fprintln(Stdout(), a...) }
func Printf(format string, a ...any) { fmt.Fprintf(Stdout(), format, a...) }
func ErrPrintln(a ...any)            { fmt.Fprintln(Stderr(), a...) }

// OK, Warn, Fail - цветные строки статуса команды.
func OK(format string, a ...any)   { okColor.Fprintf(Stdout(), format+"\n", a...) }
func Warn(format string, a ...any) { warnColor.Fprintf(Stdout(), format+"\n", a...) }
func Fail(format string, a ...any) { errColor.Fprintf(Stderr(), format+"\n", a...) }

// Dim печатает второстепенную строку (подсказки, пустые значения).
func Dim(format string, a ...any) { dimColor.Fprintf(Stdout(), format+"\n", a...) }

// PP pretty-печатает значение. Для отладки; аллоцирует.
func PP(v any) {
	fmt.Fprintf(Stdout(), "%# v\n", pretty.Formatter(v))
}

// Pf возвращает pretty-строку значения.
func Pf(v any) string {
	return fmt.Sprintf("%# v", pretty.Formatter(v))
}
