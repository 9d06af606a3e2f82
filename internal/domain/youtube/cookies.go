package youtube

import (
	"bufio"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// RandomCookieFile возвращает случайный *.txt из dir; пустая строка - файлов нет.
func RandomCookieFile(dir string) string {
	matches, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[rand.IntN(len(matches))] // #nosec G404
}

// LoadCookieJar читает файл cookies в формате Netscape (как у yt-dlp/curl).
func LoadCookieJar(path string) (http.CookieJar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open cookies")
	}
	defer func() { _ = f.Close() }()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "cookie jar")
	}

	byHost := make(map[string][]*http.Cookie)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		httpOnly := false
		if rest, ok := strings.CutPrefix(line, "#HttpOnly_"); ok {
			line, httpOnly = rest, true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		domain := fields[0]
		c := &http.Cookie{
			Name:     fields[5],
			Value:    fields[6],
			Path:     fields[2],
			Domain:   domain,
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			HttpOnly: httpOnly,
		}
		if exp, err := strconv.ParseInt(fields[4], 10, 64); err == nil && exp > 0 {
			c.Expires = time.Unix(exp, 0)
		}
		host := strings.TrimPrefix(domain, ".")
		byHost[host] = append(byHost[host], c)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read cookies")
	}

	for host, cookies := range byHost {
		jar.SetCookies(&url.URL{Scheme: "https", Host: host, Path: "/"}, cookies)
	}
	return jar, nil
}
