// Package i18n - каталог строк бота из встроенных YAML-файлов (locales/<lang>.yml).
package i18n

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v2"
)

// DefaultLanguage - язык, к которому откатываются отсутствующие ключи.
const DefaultLanguage = "en"

// NotFound - текст для неизвестного раздела помощи.
const NotFound = "No Information Found!"

//go:embed locales/*.yml
var locales embed.FS

// Catalog - строки по языкам. После Load только читается.
type Catalog struct {
	lang    string
	strings map[string]map[string]string
}

// Load читает все встроенные локали; lang - язык по умолчанию для T.
func Load(lang string) (*Catalog, error) {
	files, err := locales.ReadDir("locales")
	if err != nil {
		return nil, errors.Wrap(err, "i18n: read locales")
	}
	c := &Catalog{lang: lang, strings: make(map[string]map[string]string)}
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || path.Ext(name) != ".yml" {
			continue
		}
		data, err := locales.ReadFile("locales/" + name)
		if err != nil {
			return nil, errors.Wrapf(err, "i18n: read %s", name)
		}
		table := make(map[string]string)
		if err := yaml.Unmarshal(data, &table); err != nil {
			return nil, errors.Wrapf(err, "i18n: parse %s", name)
		}
		c.strings[strings.TrimSuffix(name, ".yml")] = table
	}
	if _, ok := c.strings[DefaultLanguage]; !ok {
		return nil, errors.Errorf("i18n: %s locale is missing", DefaultLanguage)
	}
	if _, ok := c.strings[lang]; !ok {
		c.lang = DefaultLanguage
	}
	return c, nil
}

// Language - язык каталога после отката.
func (c *Catalog) Language() string { return c.lang }

// Lookup ищет ключ в языке каталога, затем в языке по умолчанию.
func (c *Catalog) Lookup(key string) (string, bool) {
	if s, ok := c.strings[c.lang][key]; ok {
		return s, true
	}
	s, ok := c.strings[DefaultLanguage][key]
	return s, ok
}

// T возвращает строку по ключу, подставляя args через fmt.Sprintf.
// Неизвестный ключ возвращается как есть.
func (c *Catalog) T(key string, args ...any) string {
	s, ok := c.Lookup(key)
	if !ok {
		return key
	}
	if len(args) == 0 {
		return s
	}
	return fmt.Sprintf(s, args...)
}

// Help возвращает текст раздела помощи (adm, pub, sudo, game).
func (c *Catalog) Help(section string) string {
	if s, ok := c.Lookup("HELP_" + strings.ToUpper(section)); ok {
		return s
	}
	return NotFound
}
