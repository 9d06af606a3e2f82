// Package version - сведения о сборке. Значения подставляются через -ldflags "-X".
package version

var (
	Name      = "telegram-musicbot"
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

// String - "name version (commit, date)".
func String() string {
	s := Name + " " + Version
	switch {
	case Commit != "" && BuildDate != "":
		s += " (" + Commit + ", " + BuildDate + ")"
	case Commit != "":
		s += " (" + Commit + ")"
	}
	return s
}
