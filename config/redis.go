package config

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

var RDB *redis.Client
var Ctx = context.Background()

// ConnectRedis подключает кэш. Без REDIS_ADDR сервис работает без кэша и без защиты от повторов.
func ConnectRedis(s *Settings) {
	if s.RedisAddr == "" {
		slog.Warn("Адрес Redis не задан, кэширование и проверка X-Operation-ID отключены.")
		return
	}

	RDB = redis.NewClient(&redis.Options{
		Addr: s.RedisAddr,
	})

	if _, err := RDB.Ping(Ctx).Result(); err != nil {
		slog.Error("Не удалось подключиться к Redis", "error", err)
		RDB = nil // Обнуляем клиент, чтобы приложение не пыталось его использовать
		return
	}

	slog.Info("Успешное подключение к Redis!")
}

func CloseRedis() {
	if RDB != nil {
		if err := RDB.Close(); err != nil {
			slog.Warn("Ошибка закрытия Redis", "error", err)
		}
	}
}
