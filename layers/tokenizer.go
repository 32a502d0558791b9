package layers

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokenCounter counts tokens for length-cap enforcement, grounded on the
// teacher's llm/tokenizer/tiktoken.go TiktokenTokenizer: lazily initialized;
// the configured value is tried as an encoding name, then as a model name,
// defaulting to cl100k_base when neither is recognized.
type tokenCounter struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

func newTokenCounter(encoding string) *tokenCounter {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &tokenCounter{encoding: encoding}
}

func (c *tokenCounter) init() error {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			enc, err = tiktoken.EncodingForModel(c.encoding)
		}
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err != nil {
			c.initErr = err
			return
		}
		c.enc = enc
	})
	return c.initErr
}

// Count returns the token length of text, or its rune count as a degraded
// fallback if the encoding failed to initialize (never fatal: length caps
// are a best-effort guard, not a correctness invariant).
func (c *tokenCounter) Count(text string) int {
	if err := c.init(); err != nil {
		return len([]rune(text))
	}
	return len(c.enc.Encode(text, nil, nil))
}
