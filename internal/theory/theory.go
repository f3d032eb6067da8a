// Package theory provides the process-wide library of formal theories.
// Theories are immutable at runtime, identified by string id, and declare
// which other theories a document can migrate to.
package theory

// MorTypeDecl declares a morphism type in a theory's vocabulary, with the
// object types it runs between.
type MorTypeDecl struct {
	Name string `yaml:"name"`
	Dom  string `yaml:"dom"`
	Cod  string `yaml:"cod"`
}

// Theory is an immutable formal theory. Documents carry a theory id;
// elaboration and validation of their formal content happen against the
// resolved theory.
type Theory struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// ObTypes is the object type vocabulary.
	ObTypes []string `yaml:"obTypes"`
	// MorTypes is the morphism type vocabulary.
	MorTypes []MorTypeDecl `yaml:"morTypes"`

	// Inclusions lists theory ids this theory trivially migrates to:
	// relabeling the document's theory field is sound without touching
	// content.
	Inclusions []string `yaml:"inclusions"`
	// Pushforwards lists theory ids reachable by a declared structural
	// migration. The migration function itself is registered with the
	// migration engine, not stored here.
	Pushforwards []string `yaml:"pushforwards"`
}

// HasObType reports whether name is in the object type vocabulary.
func (t *Theory) HasObType(name string) bool {
	for _, ot := range t.ObTypes {
		if ot == name {
			return true
		}
	}
	return false
}

// MorType looks up a morphism type declaration by name.
func (t *Theory) MorType(name string) (MorTypeDecl, bool) {
	for _, mt := range t.MorTypes {
		if mt.Name == name {
			return mt, true
		}
	}
	return MorTypeDecl{}, false
}

// Includes reports whether target is reachable by trivial migration.
func (t *Theory) Includes(target string) bool {
	for _, id := range t.Inclusions {
		if id == target {
			return true
		}
	}
	return false
}

// HasPushforwardTo reports whether a structural migration to target is
// declared.
func (t *Theory) HasPushforwardTo(target string) bool {
	for _, id := range t.Pushforwards {
		if id == target {
			return true
		}
	}
	return false
}
