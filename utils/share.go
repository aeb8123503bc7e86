package utils

import (
	"crypto/rand"
	"math/big"

	"sharelink/model"
)

var charsetSize = big.NewInt(int64(len(model.ShortCodeCharset)))

// GenShortCode draws model.ShortCodeLength characters uniformly from the lowercase
// alphanumeric alphabet using the system CSPRNG.
func GenShortCode() (string, error) {
	code := make([]byte, model.ShortCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, charsetSize)
		if err != nil {
			return "", err
		}
		code[i] = model.ShortCodeCharset[n.Int64()]
	}
	return string(code), nil
}
