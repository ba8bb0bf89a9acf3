package core

// ActorKind distinguishes scheduled runs from user-initiated ones.
type ActorKind string

const (
	ActorSystem ActorKind = "system"
	ActorUser   ActorKind = "user"
)

// Actor is recorded in created_by/updated_by audit fields.
type Actor struct {
	Kind  ActorKind
	ID    string
	Email string
}

func SystemActor() Actor {
	return Actor{Kind: ActorSystem}
}

func UserActor(id, email string) Actor {
	return Actor{Kind: ActorUser, ID: id, Email: email}
}

func (a Actor) IsSystem() bool {
	return a.Kind != ActorUser
}

// String renders "system" or "user:<id>".
func (a Actor) String() string {
	if a.IsSystem() {
		return string(ActorSystem)
	}
	return string(ActorUser) + ":" + a.ID
}
