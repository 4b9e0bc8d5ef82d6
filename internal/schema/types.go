package schema

// IDStrategy determines who assigns resource identifiers.
type IDStrategy string

const (
	// IDServer means the server assigns identifiers on create (the default).
	// Client-supplied ids are rejected for these types.
	IDServer IDStrategy = "server"

	// IDClient means clients must supply an id on create.
	IDClient IDStrategy = "client"
)

// AttrKind is the value type of an attribute.
type AttrKind string

const (
	AttrString AttrKind = "string"
	AttrInt    AttrKind = "int"
	AttrFloat  AttrKind = "float"
	AttrBool   AttrKind = "bool"
)

// RelKind is the cardinality of a relationship.
type RelKind string

const (
	RelToOne  RelKind = "toOne"
	RelToMany RelKind = "toMany"
)

// ResourceType describes one resource type exposed by the API.
type ResourceType struct {
	// PublicName is the type name on the wire, e.g. "musicTracks".
	PublicName string

	// IDStrategy controls identifier assignment on create.
	IDStrategy IDStrategy

	// Attributes in declaration order.
	Attributes []*Attribute

	// Relationships in declaration order.
	Relationships []*Relationship

	attrsByName map[string]*Attribute
	relsByName  map[string]*Relationship
}

// Attribute describes one attribute of a resource type.
type Attribute struct {
	// PublicName is the attribute name on the wire.
	PublicName string

	// Kind is the value type used for coercion and storage.
	Kind AttrKind

	// ReadOnly attributes appear in representations but reject assignment.
	ReadOnly bool
}

// Relationship describes one relationship of a resource type.
type Relationship struct {
	// PublicName is the relationship name on the wire.
	PublicName string

	// Kind is the cardinality.
	Kind RelKind

	// TargetName is the public name of the right-hand resource type.
	TargetName string

	// Target is resolved by Registry construction.
	Target *ResourceType
}

// Attribute looks up an attribute by its NFC-normalized public name.
func (t *ResourceType) Attribute(publicName string) (*Attribute, bool) {
	a, ok := t.attrsByName[normalizeName(publicName)]
	return a, ok
}

// Relationship looks up a relationship by its NFC-normalized public name.
func (t *ResourceType) Relationship(publicName string) (*Relationship, bool) {
	r, ok := t.relsByName[normalizeName(publicName)]
	return r, ok
}
