package store

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// prefixStorage namespaces a shared fiber.Storage so sessions and other
// users of the same backend cannot collide.
type prefixStorage struct {
	fiber.Storage
	prefix string
}

func (s *prefixStorage) Get(key string) ([]byte, error) {
	return s.Storage.Get(s.prefix + key)
}

func (s *prefixStorage) Set(key string, val []byte, exp time.Duration) error {
	return s.Storage.Set(s.prefix+key, val, exp)
}

func (s *prefixStorage) Delete(key string) error {
	return s.Storage.Delete(s.prefix + key)
}

func WithPrefix(storage fiber.Storage, prefix string) fiber.Storage {
	return &prefixStorage{Storage: storage, prefix: prefix}
}
