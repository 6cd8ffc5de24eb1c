// In file: internal/version/version.go

// Package version centralizes the versioning of the gateway's model-facing contracts.
//
// The Capability Catalog is what a language model sees, so a change to any tool name,
// description or parameter changes model behavior. Every catalog carries a fingerprint built
// from its canonical JSON form; logs and API responses report it so prior model behavior can be
// traced back to the exact catalog it was produced with.
package version

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComponentVersions holds the version strings for different logical parts of the application.
// Manually increment a version number here before you deploy a change to that component.
var ComponentVersions = struct {
	// Catalog should be bumped whenever a tool definition changes on purpose.
	Catalog string

	// PromptLogic should be bumped whenever the selection system instruction changes.
	PromptLogic string
}{
	Catalog:     "v1.0",
	PromptLogic: "v1.0",
}

// CatalogFingerprint creates a stable identifier for a serialized catalog.
//
// Example output: "cv1.0_pv1.0:a1b2c3d4e5f60718"
func CatalogFingerprint(canonical []byte) string {
	hasher := sha256.New()
	hasher.Write(canonical)
	digest := hex.EncodeToString(hasher.Sum(nil))

	return fmt.Sprintf("c%s_p%s:%s",
		ComponentVersions.Catalog,
		ComponentVersions.PromptLogic,
		digest[:16],
	)
}
