package household

import "fmt"

// SchemaVersion is the structural version of the durable store. Stores must
// refuse to operate on a different version; raising it requires an additive
// migration that preserves existing rows.
const SchemaVersion = 1

// CollectionName identifies one of the five persisted collections.
type CollectionName string

const (
	CollectionUsers       CollectionName = "users"
	CollectionScoreItems  CollectionName = "scoreItems"
	CollectionRewardItems CollectionName = "rewardItems"
	CollectionRecords     CollectionName = "records"
	CollectionMessages    CollectionName = "messages"
)

// Index is a named secondary index over one field of a collection.
type Index struct {
	Name  string
	Field string
}

// Collection describes one collection: its primary key and secondary indexes.
type Collection struct {
	Name    CollectionName
	Key     string
	Indexes []Index
}

// SchemaDescriptor is the typed replacement for string-literal store
// definitions. Stores check it at startup.
type SchemaDescriptor struct {
	Version     int
	Collections []Collection
}

// Schema is the version 1 layout. Collection order is also the order in which
// ReplaceAll clears and refills collections.
var Schema = SchemaDescriptor{
	Version: SchemaVersion,
	Collections: []Collection{
		{Name: CollectionUsers, Key: "id", Indexes: []Index{
			{Name: "idx_users_role", Field: "role"},
		}},
		{Name: CollectionScoreItems, Key: "id", Indexes: []Index{
			{Name: "idx_score_items_type", Field: "type"},
		}},
		{Name: CollectionRewardItems, Key: "id"},
		{Name: CollectionRecords, Key: "id", Indexes: []Index{
			{Name: "idx_records_child_id", Field: "childId"},
			{Name: "idx_records_timestamp", Field: "timestamp"},
		}},
		{Name: CollectionMessages, Key: "id", Indexes: []Index{
			{Name: "idx_messages_from_child_id", Field: "fromChildId"},
			{Name: "idx_messages_is_read", Field: "isRead"},
			{Name: "idx_messages_timestamp", Field: "timestamp"},
		}},
	},
}

// Collection returns the descriptor for name.
func (d SchemaDescriptor) Collection(name CollectionName) (Collection, bool) {
	for _, c := range d.Collections {
		if c.Name == name {
			return c, true
		}
	}
	return Collection{}, false
}

// IndexNames lists every declared secondary index.
func (d SchemaDescriptor) IndexNames() []string {
	var names []string
	for _, c := range d.Collections {
		for _, idx := range c.Indexes {
			names = append(names, idx.Name)
		}
	}
	return names
}

// CheckVersion compares a store-reported version against the descriptor.
func (d SchemaDescriptor) CheckVersion(actual int64) error {
	if actual != int64(d.Version) {
		return fmt.Errorf("%w: store is at version %d, expected %d", ErrSchemaMismatch, actual, d.Version)
	}
	return nil
}
