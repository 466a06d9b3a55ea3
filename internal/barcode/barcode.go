// Package barcode generates the internal 16-digit batch barcodes.
package barcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Length is the number of decimal digits in a batch barcode.
const Length = 16

// ErrTaken is returned by an insert func when the barcode is already used.
var ErrTaken = errors.New("barcode already taken")

var ten = big.NewInt(10)

// Generator produces candidate barcodes.
type Generator func() (string, error)

// Generate returns Length uniformly random decimal digits.
func Generate() (string, error) {
	buf := make([]byte, Length)

	for i := range buf {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("reading random digit: %w", err)
		}

		buf[i] = byte('0' + n.Int64())
	}

	return string(buf), nil
}

// Valid reports whether s looks like a batch barcode.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}

	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}

// Assign draws barcodes from gen and hands each to insert until one is
// accepted. Collisions are signalled by insert returning ErrTaken; any other
// error aborts. The loop stops when ctx is done.
func Assign(ctx context.Context, gen Generator, insert func(ctx context.Context, code string) error) (string, error) {
	if gen == nil {
		gen = Generate
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("assigning barcode: %w", err)
		}

		code, err := gen()
		if err != nil {
			return "", err
		}

		err = insert(ctx, code)
		if errors.Is(err, ErrTaken) {
			continue
		}

		if err != nil {
			return "", err
		}

		return code, nil
	}
}
