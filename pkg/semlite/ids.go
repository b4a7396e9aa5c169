package semlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// idNamespace scopes generated ids so they never collide with UUIDs minted
// elsewhere. The value is arbitrary but must never change: generated ids are
// a pure function of entry text.
var idNamespace = uuid.MustParse("f1e0db1c-7a3e-4b27-9c61-2a5d8f40c9aa")

// resolveID derives an id for an entry inserted without one. The base id is
// a UUIDv5 of the text, so re-inserting identical text is detectable rather
// than destructive: if the base id is already live, a counter suffix picks
// the first free slot instead of overwriting.
func (db *DB) resolveID(ctx context.Context, text string) (string, error) {
	base := uuid.NewSHA1(idNamespace, []byte(text)).String()

	candidate := base
	for n := 2; ; n++ {
		_, err := db.store.Get(ctx, db.coll, candidate)
		if errors.Is(err, ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}
