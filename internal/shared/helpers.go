// Package shared - небольшие общие утилиты без внешних зависимостей:
// безопасный доступ к слайсам, случайный выбор, обрезка строк по рунам.
package shared

import (
	"math/rand/v2"
	"strings"
	"unicode/utf8"
)

// GetAt возвращает элемент по индексу i или нулевое значение и false при выходе за границы.
func GetAt[T any](s []T, i int) (T, bool) {
	if i < 0 || i >= len(s) {
		var zero T
		return zero, false
	}
	return s[i], true
}

// Random возвращает псевдослучайное целое в [fromMin, toMax] включительно.
func Random(fromMin, toMax int) int {
	if fromMin >= toMax {
		return fromMin
	}
	return rand.IntN(toMax-fromMin+1) + fromMin // #nosec G404
}

// Choice возвращает случайный элемент слайса; false для пустого.
func Choice[T any](s []T) (T, bool) {
	if len(s) == 0 {
		var zero T
		return zero, false
	}
	return s[rand.IntN(len(s))], true // #nosec G404
}

// RandomToken собирает строку длины n из символов alphabet.
func RandomToken(n int, alphabet string) string {
	if n <= 0 || alphabet == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(n)
	for range n {
		b.WriteByte(alphabet[rand.IntN(len(alphabet))]) // #nosec G404
	}
	return b.String()
}

// TruncateRunes обрезает s до max рун, не разрывая UTF-8.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
