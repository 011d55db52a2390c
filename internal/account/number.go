package account

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// NumberGenerator produces candidate account numbers. Uniqueness is enforced
// by the repository; the service retries on collision.
type NumberGenerator func() (string, error)

const numberPrefix = "40"

// TimeRandomNumbers combines the low digits of the current unix second with
// random digits, giving 12-digit numbers that rarely collide.
func TimeRandomNumbers(now func() time.Time) NumberGenerator {
	limit := big.NewInt(1_000_000)
	return func() (string, error) {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate account number: %w", err)
		}
		seconds := now().Unix() % 10_000
		return fmt.Sprintf("%s%04d%06d", numberPrefix, seconds, n.Int64()), nil
	}
}
