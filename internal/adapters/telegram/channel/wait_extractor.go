package channel

import (
	rand "math/rand/v2"
	"time"

	"github.com/gotd/td/tgerr"

	"telegram-musicbot/internal/infra/throttle"
)

// floodWaitJitterMax - верхняя граница добавки к FLOOD_WAIT, чтобы повторы
// разных загрузок не приходили в одну секунду.
const floodWaitJitterMax = 3 * time.Second

// FloodWaitExtractor распознаёт FLOOD_WAIT и FLOOD_PREMIUM_WAIT и возвращает
// паузу из ошибки плюс джиттер. Прочие ошибки - (0, false).
func FloodWaitExtractor() throttle.WaitExtractor {
	return func(err error) (time.Duration, bool) {
		if err == nil {
			return 0, false
		}
		wait, ok := tgerr.AsFloodWait(err)
		if !ok {
			return 0, false
		}
		return wait + floodJitter(), true
	}
}

func floodJitter() time.Duration {
	sec := int(floodWaitJitterMax / time.Second)
	if sec <= 0 {
		return 0
	}
	return time.Duration(rand.IntN(sec)) * time.Second // #nosec G404
}

// permanentError - ошибка, после которой повтор загрузки не поможет
// (нет прав в канале, канал удалён и т. п.).
type permanentError struct{ err error }

func (e permanentError) Error() string   { return e.err.Error() }
func (e permanentError) Unwrap() error   { return e.err }
func (e permanentError) StopRetry() bool { return true }

// permanentRPC - коды, на которых троттлер прекращает повторы.
var permanentRPC = []string{
	"CHAT_WRITE_FORBIDDEN",
	"CHAT_ADMIN_REQUIRED",
	"CHANNEL_PRIVATE",
	"CHANNEL_INVALID",
	"PEER_ID_INVALID",
	"MSG_ID_INVALID",
	"FILE_PARTS_INVALID",
	"MEDIA_EMPTY",
}

// classify помечает постоянные RPC-ошибки как StopRetryer.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if tgerr.Is(err, permanentRPC...) {
		return permanentError{err: err}
	}
	return err
}
