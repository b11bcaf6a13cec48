// Package coupon checks shopper-entered coupon codes against the encrypted
// codes held in storage.
package coupon

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bookclub-orders/internal/apperr"
)

// MsgNoMatch is returned to callers when no stored coupon matches.
const MsgNoMatch = "No matching coupon"

// Stored is one encrypted coupon as held in storage.
type Stored struct {
	ID            int64
	EncryptedCode string
}

// Store lists every stored coupon in a stable order.
type Store interface {
	Coupons(ctx context.Context) ([]Stored, error)
}

// Opener decrypts a stored coupon code.
type Opener interface {
	Open(encrypted string) (string, error)
}

// Validator matches plaintext codes by decrypting every stored entry in
// order until one equals the input. Each check is O(n) in the number of
// stored coupons since encrypted values cannot be looked up by plaintext.
type Validator struct {
	store  Store
	opener Opener
}

// NewValidator creates a Validator.
func NewValidator(store Store, opener Opener) *Validator {
	return &Validator{store: store, opener: opener}
}

// Validate reports whether code matches a stored coupon. Surrounding spaces
// are trimmed, then comparison is exact. Entries that fail to decrypt are
// logged and skipped.
func (v *Validator) Validate(ctx context.Context, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, apperr.MissingParameters("coupon")
	}

	stored, err := v.store.Coupons(ctx)
	if err != nil {
		return false, errors.Wrap(err, "load coupons")
	}

	for _, c := range stored {
		plain, err := v.opener.Open(c.EncryptedCode)
		if err != nil {
			zctx.From(ctx).Warn("Skipping undecryptable coupon",
				zap.Int64("coupon_id", c.ID),
				zap.Error(err),
			)
			continue
		}
		if plain == code {
			return true, nil
		}
	}
	return false, nil
}

// Verify is Validate that turns a miss into an apperr.KindNotFound error.
func (v *Validator) Verify(ctx context.Context, code string) error {
	ok, err := v.Validate(ctx, code)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound(MsgNoMatch)
	}
	return nil
}
