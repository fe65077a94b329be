package game

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// криптостойкий seed для игр случая; исходы партии выводятся из него
// детерминированно, что дает воспроизводимый повтор
func SecureSeed() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// запасной вариант - никогда не должно происходить
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]) & (1<<63 - 1))
}
