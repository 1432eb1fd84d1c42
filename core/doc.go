// Package core contains the social link domain contracts, entities, and
// orchestration logic. Provider gateways, stores, and HTTP adapters depend on
// this package; core must not depend on provider-specific or transport-specific
// adapters.
package core
