package nstruct

import (
	"fmt"

	"github.com/leapstack-labs/structkit/pkg/schema"
)

// ParseEmbeddedSchema builds the registry used to read a file whose header
// carries text. r itself is not modified.
//
// Structs declared in text that r has a class for are bound to that class,
// but with the file's id and field order. Structs r does not know get a
// stub class that reads them as *Record, so their bytes can still be
// walked and written back. Classes of r the file does not mention are
// carried over under ids the file does not use.
//
// Malformed text is a hard error; only unknown names are tolerated.
func (r *Registry) ParseEmbeddedSchema(text string) (*Registry, error) {
	defs, err := schema.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("embedded schema: %w", err)
	}

	view := r.derive()

	for _, def := range defs {
		if _, dup := view.structs[def.Name]; dup {
			return nil, fmt.Errorf("embedded schema: struct %s declared twice", def.Name)
		}
		if def.ID != 0 {
			if other, taken := view.ids[def.ID]; taken {
				return nil, &IDConflictError{ID: def.ID, Existing: other.Name, Incoming: def.Name}
			}
			view.idgen.Reserve(def.ID)
		}
		// Placeholder so later duplicates are caught before ids are final.
		view.structs[def.Name] = def
		if def.ID != 0 {
			view.ids[def.ID] = def
		}
	}

	for _, def := range defs {
		if def.ID == 0 {
			if def.ID, err = view.nextFreeID(); err != nil {
				return nil, fmt.Errorf("embedded schema: %s: %w", def.Name, err)
			}
		}
		cls, known := r.Class(def.Name)
		if !known {
			r.logger.Warn("unknown struct in embedded schema, reading as record", "struct", def.Name)
			cls = stubClass(def.Name)
		}
		view.bind(def, cls)
		view.names = append(view.names, def.Name)
	}

	for _, live := range r.Structs() {
		if _, inFile := view.structs[live.Name]; inFile {
			continue
		}
		def := live.Clone()
		if _, taken := view.ids[def.ID]; taken {
			if def.ID, err = view.nextFreeID(); err != nil {
				return nil, fmt.Errorf("embedded schema: %s: %w", def.Name, err)
			}
		} else {
			view.idgen.Reserve(def.ID)
		}
		cls, _ := r.Class(def.Name)
		view.bind(def, cls)
		view.names = append(view.names, def.Name)
	}

	return view, nil
}
