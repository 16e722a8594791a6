package locker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker реализует распределенную блокировку поверх Redis (SET NX + TTL).
// Клиент Redis внедряется снаружи, его жизненным циклом управляет main
type Locker struct {
	client *redis.Client
	prefix string
}

func New(client *redis.Client) *Locker {
	return &Locker{
		client: client,
		prefix: "mediavault:lock:",
	}
}

// Снимаем блокировку только если её всё ещё держит этот экземпляр:
// после истечения TTL ключ мог перезахватить другой процесс
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// TryLock пытается захватить блокировку name на время ttl. Возвращает
// токен владения и false без ошибки, если блокировку держит другой
// экземпляр
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, l.prefix+name, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

// Unlock снимает блокировку по токену. Истёкшая или перехваченная
// блокировка ошибкой не считается
func (l *Locker) Unlock(ctx context.Context, name, token string) error {
	if err := unlockScript.Run(ctx, l.client, []string{l.prefix + name}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}

	return nil
}
