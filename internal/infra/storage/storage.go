// Package storage - утилиты безопасной работы с локальным диском.
//   - EnsureDir - гарантирует наличие директории для целевого пути;
//   - WriteAtomic - атомарная запись через временный файл и rename;
//   - AtomicWriteFile / CopyAtomic - частные случаи для байтов и потоков;
//   - FileReady - проверка, что файл медиа уже лежит на диске.
//
// Через WriteAtomic проходят сессия, JSON-кеш ссылок и скачанные треки: читатель
// всегда видит либо старый файл, либо новый целиком, и никогда половину трека.
package storage

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"

	"telegram-musicbot/internal/infra/logger"
)

const (
	// PrivatePerm - права на секреты (сессия).
	PrivatePerm os.FileMode = 0o600
	// SharedPerm - права на медиа и кеш, которые читают внешние процессы (ffmpeg и т. п.).
	SharedPerm os.FileMode = 0o644

	// CopyChunkSize - размер буфера потокового копирования.
	CopyChunkSize = 16384
)

// EnsureDir гарантирует наличие каталога для указанного файла.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create dir %s", dir)
	}
	return nil
}

// WriteAtomic создаёт temp в каталоге назначения, отдаёт его write, затем
// fsync → chmod(perm) → close → rename → fsync(dir). При ошибке write temp удаляется,
// а существующий файл по path остаётся нетронутым.
func WriteAtomic(path string, perm os.FileMode, write func(w io.Writer) error) error {
	clean := filepath.Clean(path)
	if err := EnsureDir(clean); err != nil {
		return err
	}
	dir := filepath.Dir(clean)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(clean)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	bw := bufio.NewWriterSize(tmp, CopyChunkSize)
	if err := write(bw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "flush temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "fsync temp file")
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "chmod temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpName, clean); err != nil {
		return errors.Wrap(err, "rename temp file")
	}

	if dirFile, err := os.Open(dir); err == nil {
		if errSync := dirFile.Sync(); errSync != nil {
			logger.Debugf("WriteAtomic: dir sync error: %v", errSync) // Windows и часть FS не умеют
		}
		_ = dirFile.Close()
	}
	return nil
}

// AtomicWriteFile атомарно записывает байты в path с правами PrivatePerm.
func AtomicWriteFile(path string, data []byte) error {
	return AtomicWriteFileMode(path, data, PrivatePerm)
}

// AtomicWriteFileMode - AtomicWriteFile с явными правами.
func AtomicWriteFileMode(path string, data []byte, perm os.FileMode) error {
	return WriteAtomic(path, perm, func(w io.Writer) error {
		if _, err := w.Write(data); err != nil {
			return errors.Wrap(err, "write temp file")
		}
		return nil
	})
}

// CopyAtomic копирует поток в path блоками CopyChunkSize и возвращает число байт.
// Пустой поток считается ошибкой: пустой файл нельзя проигрывать.
func CopyAtomic(path string, r io.Reader) (int64, error) {
	var n int64
	err := WriteAtomic(path, SharedPerm, func(w io.Writer) error {
		buf := make([]byte, CopyChunkSize)
		copied, err := io.CopyBuffer(writerOnly{w}, readerOnly{r}, buf)
		n = copied
		if err != nil {
			return errors.Wrap(err, "copy stream")
		}
		if copied == 0 {
			return errors.New("empty stream")
		}
		return nil
	})
	return n, err
}

// writerOnly и readerOnly прячут ReaderFrom/WriterTo: без них io.CopyBuffer
// отдаёт копирование bufio.Writer или *os.File, и buf не используется.
type writerOnly struct{ io.Writer }

type readerOnly struct{ io.Reader }

// FileReady сообщает, что по path лежит непустой обычный файл.
func FileReady(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}
