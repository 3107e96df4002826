// Package access decides whether an actor may mutate a resource.
//
// All role checks in the service go through CanMutate; callers translate a
// false result into domain.ErrForbidden.
package access

import "github.com/Clark-Hu/yamdb/internal/domain"

// Capability is a privilege an actor holds with respect to one resource.
type Capability uint8

const (
	Anonymous Capability = iota
	Authenticated
	Owner
	Moderator
	Admin
)

func (c Capability) String() string {
	switch c {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	case Owner:
		return "owner"
	case Moderator:
		return "moderator"
	case Admin:
		return "admin"
	}
	return "unknown"
}

// Kind names the resource family being mutated.
type Kind string

const (
	KindCategory Kind = "category"
	KindGenre    Kind = "genre"
	KindTitle    Kind = "title"
	KindReview   Kind = "review"
	KindComment  Kind = "comment"
	KindUser     Kind = "user"
)

// Action is the mutation being attempted.
type Action string

const (
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionChangeRole Action = "change_role"
	// ActionList covers reading other users' accounts, which is not public.
	ActionList       Action = "list"
)

// Resource identifies the target of a mutation. OwnerID is the author id for
// reviews and comments and the user id for user profiles; zero means the
// resource has no owner yet (creation).
type Resource struct {
	Kind    Kind
	OwnerID int64
}

type rule struct {
	kind   Kind
	action Action
}

// table lists, per resource kind and action, the capabilities that are
// sufficient on their own. Anything missing is denied.
var table = map[rule][]Capability{
	{KindCategory, ActionCreate}: {Admin},
	{KindCategory, ActionUpdate}: {Admin},
	{KindCategory, ActionDelete}: {Admin},
	{KindGenre, ActionCreate}:    {Admin},
	{KindGenre, ActionUpdate}:    {Admin},
	{KindGenre, ActionDelete}:    {Admin},
	{KindTitle, ActionCreate}:    {Admin},
	{KindTitle, ActionUpdate}:    {Admin},
	{KindTitle, ActionDelete}:    {Admin},

	{KindReview, ActionCreate}:  {Authenticated},
	{KindReview, ActionUpdate}:  {Owner, Moderator, Admin},
	{KindReview, ActionDelete}:  {Owner, Moderator, Admin},
	{KindComment, ActionCreate}: {Authenticated},
	{KindComment, ActionUpdate}: {Owner, Moderator, Admin},
	{KindComment, ActionDelete}: {Owner, Moderator, Admin},

	{KindUser, ActionCreate}:     {Admin},
	{KindUser, ActionUpdate}:     {Owner, Admin},
	{KindUser, ActionDelete}:     {Admin},
	{KindUser, ActionChangeRole}: {Admin},
	{KindUser, ActionList}:       {Admin},
}

// Capabilities returns every capability actor holds for res. A nil actor is
// anonymous and holds nothing else.
func Capabilities(actor *domain.User, res Resource) []Capability {
	if actor == nil {
		return []Capability{Anonymous}
	}
	caps := []Capability{Authenticated}
	if res.OwnerID != 0 && res.OwnerID == actor.ID {
		caps = append(caps, Owner)
	}
	switch actor.Role {
	case domain.RoleModerator:
		caps = append(caps, Moderator)
	case domain.RoleAdmin:
		caps = append(caps, Admin)
	}
	return caps
}

// CanMutate reports whether actor may perform action on res.
func CanMutate(actor *domain.User, action Action, res Resource) bool {
	allowed, ok := table[rule{res.Kind, action}]
	if !ok {
		return false
	}
	for _, held := range Capabilities(actor, res) {
		for _, want := range allowed {
			if held == want {
				return true
			}
		}
	}
	return false
}
