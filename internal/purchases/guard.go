package purchases

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"

	"github.com/emekadefirst/learnhub-backend/pkg/enums"
)

// IdentityKey collapses a buyer into a stable identity: the user id when
// authenticated, else the lower-cased trimmed email. The prefixes keep the
// two namespaces from colliding.
func IdentityKey(buyerID *uuid.UUID, email string) string {
	if buyerID != nil && *buyerID != uuid.Nil {
		return "user:" + buyerID.String()
	}
	return "email:" + strings.ToLower(strings.TrimSpace(email))
}

// DedupKey hashes (identity, product, reference) into the value the
// purchases table enforces uniqueness on. Concurrent reconciliations of the
// same notification collide on this key; the loser re-reads the winner's row.
func DedupKey(identityKey string, productID uuid.UUID, productType enums.ProductType, paymentReference string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		identityKey,
		productID.String(),
		productType.String(),
		paymentReference,
	}, "|")))
	return hex.EncodeToString(sum[:])
}
