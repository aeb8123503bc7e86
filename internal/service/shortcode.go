package service

import (
	"context"
	"errors"
	"fmt"

	"sharelink/model"
	"sharelink/utils"
)

const defaultCodeAttempts = 32

// CodeLookup is the read side of the registry used to probe for free codes.
type CodeLookup interface {
	Get(ctx context.Context, shortCode string) (*model.ShareLink, error)
}

// ShortCodeAllocator draws random short codes and probes the registry until one is free.
// A free probe does not reserve the code; the conditional create does.
type ShortCodeAllocator struct {
	generate    func() (string, error)
	maxAttempts int
}

func NewShortCodeAllocator() *ShortCodeAllocator {
	return &ShortCodeAllocator{generate: utils.GenShortCode, maxAttempts: defaultCodeAttempts}
}

// Generate returns one random code without checking the registry.
func (a *ShortCodeAllocator) Generate() (string, error) {
	return a.generate()
}

// GenerateUnique returns a code that was not present in lookup when probed.
func (a *ShortCodeAllocator) GenerateUnique(ctx context.Context, lookup CodeLookup) (string, error) {
	for i := 0; i < a.maxAttempts; i++ {
		code, err := a.generate()
		if err != nil {
			return "", upstreamError("generate short code", err)
		}
		_, err = lookup.Get(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: no free short code after %d attempts", ErrUpstream, a.maxAttempts)
}
