package keyboards

import "strings"

// Callback - разобранные callback-данные: "<Command> <a>|<b>|...".
type Callback struct {
	Command string
	Args    []string
}

// ParseCallback делит данные на команду и аргументы.
func ParseCallback(data string) Callback {
	data = strings.TrimSpace(data)
	cmd, rest, found := strings.Cut(data, " ")
	c := Callback{Command: cmd}
	if found && rest != "" {
		c.Args = strings.Split(strings.TrimSpace(rest), "|")
	}
	return c
}

// Arg возвращает i-й аргумент или пустую строку.
func (c Callback) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// ParseFlags восстанавливает Flags из кодов режима, канала и форса.
func ParseFlags(mode, channel, force string) Flags {
	return Flags{Video: mode == "v", Channel: channel == "c", Force: force == "f"}
}
