// Package captcha генерирует коды подтверждения и рисует картинку для графической капчи.
package captcha

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/yourusername/homepage-api/internal/domain/entity"
)

const (
	imageAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	emailAlphabet = "0123456789"

	ImageCodeLength = 4
	EmailCodeLength = 6
)

// Generator выдает случайные коды из криптостойкого источника
type Generator struct {
	rand io.Reader
}

// NewGenerator создает генератор поверх crypto/rand
func NewGenerator() *Generator {
	return &Generator{rand: rand.Reader}
}

// Generate возвращает код для указанного назначения:
// 4 символа A-Z0-9 для картинки, 6 цифр для письма.
func (g *Generator) Generate(purpose entity.Purpose) (string, error) {
	switch purpose {
	case entity.PurposeImage:
		return g.pick(imageAlphabet, ImageCodeLength)
	case entity.PurposeEmail:
		return g.pick(emailAlphabet, EmailCodeLength)
	default:
		return "", fmt.Errorf("unknown code purpose %q", purpose)
	}
}

func (g *Generator) pick(alphabet string, n int) (string, error) {
	limit := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(g.rand, limit)
		if err != nil {
			return "", fmt.Errorf("read random source: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
