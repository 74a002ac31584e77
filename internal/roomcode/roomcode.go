package roomcode

import (
	"crypto/rand"
	"math/big"
)

const Length = 6

// Alphabet leaves out 0/O and 1/I/L so codes survive being read aloud.
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// Generate returns a random code. Uniqueness is the caller's job.
func Generate() (string, error) {
	max := big.NewInt(int64(len(Alphabet)))

	code := make([]byte, Length)
	for i := range code {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = Alphabet[num.Int64()]
	}
	return string(code), nil
}
