package feeledger

import "github.com/xraph/feeledger/id"

// ID is the primary identifier type for all Feeledger entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
