package models

// FieldSpec describes a condition field: its value type, which item type
// it exists on, and whether a structurally absent value counts as the
// maximum representable value ("days since" semantics, so age rules match
// never-watched items).
type FieldSpec struct {
	Name        string
	Type        FieldType
	Item        ItemType
	AbsentIsMax bool
}

// fieldRegistry is the closed set of fields a condition may reference.
// Anything outside this map is rejected at rule-save time.
var fieldRegistry = map[string]FieldSpec{
	"movie.lastPlayedDays":          {Name: "movie.lastPlayedDays", Type: FieldNumber, Item: ItemTypeMovie, AbsentIsMax: true},
	"movie.neverPlayed":             {Name: "movie.neverPlayed", Type: FieldBoolean, Item: ItemTypeMovie},
	"movie.inCollections":           {Name: "movie.inCollections", Type: FieldSet, Item: ItemTypeMovie},
	"season.lastWatchedEpisodeDays": {Name: "season.lastWatchedEpisodeDays", Type: FieldNumber, Item: ItemTypeSeason, AbsentIsMax: true},
	"season.neverWatched":           {Name: "season.neverWatched", Type: FieldBoolean, Item: ItemTypeSeason},
	"season.inCollections":          {Name: "season.inCollections", Type: FieldSet, Item: ItemTypeSeason},
}

// operatorsByType maps each field type to its permitted operators
var operatorsByType = map[FieldType][]Operator{
	FieldNumber:  {OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual, OpEqual, OpNotEqual},
	FieldBoolean: {OpIsTrue, OpIsFalse},
	FieldSet:     {OpIn, OpNotIn},
}

// LookupField returns the spec for a registered field name
func LookupField(name string) (FieldSpec, bool) {
	spec, ok := fieldRegistry[name]
	return spec, ok
}

// OperatorAllowed reports whether op belongs to the operator set of the
// given field type
func OperatorAllowed(ft FieldType, op Operator) bool {
	for _, allowed := range operatorsByType[ft] {
		if op == allowed {
			return true
		}
	}
	return false
}
