// internal/domain/models/group.go
package models

// DefaultGroupName is the label used when a group is created without a name
// and the name shown before the first snapshot of a group arrives.
const DefaultGroupName = "Counter"

// MaxGroupNameLen is the maximum number of characters in a group name.
const MaxGroupNameLen = 50

// GroupIDLen is the length of a generated group id.
const GroupIDLen = 20

// Group is a shared counter, stored as one record at groups/{id}.
//
// NOTE:
//   - ID is the record key and is never stored inside the record.
//   - Count is only changed by relative atomic updates or a reset to 0.
//   - CreatedBy never changes after creation; it is the sole input to
//     grouppolicy.IsOwner.
//   - Members only grows; values are always true.
type Group struct {
	ID        string          `bson:"-" json:"id"`
	Name      string          `bson:"name" json:"name"`
	Count     int64           `bson:"count" json:"count"`
	CreatedBy string          `bson:"createdBy" json:"createdBy"`
	Members   map[string]bool `bson:"members,omitempty" json:"members,omitempty"`
}

// View returns the part of the group a live subscriber renders.
func (g Group) View() GroupView {
	name := g.Name
	if name == "" {
		name = DefaultGroupName
	}
	return GroupView{Name: name, Count: g.Count, Owner: g.CreatedBy}
}

// GroupView is the local projection of the last snapshot received for a group.
// Owner is empty when the creator is unknown.
type GroupView struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
	Owner string `json:"owner,omitempty"`
}

// DefaultGroupView is the state shown before any snapshot has been received,
// and for groups that do not exist (yet).
func DefaultGroupView() GroupView {
	return GroupView{Name: DefaultGroupName}
}
