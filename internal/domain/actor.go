package domain

import "fmt"

const (
	ActorKindHuman  = "human"
	ActorKindSystem = "system"
)

// Actor identifies who performed a mutation. Automated jobs use the system
// actor instead of a persisted pseudo-user.
type Actor struct {
	Kind string
	ID   string
}

func HumanActor(id string) Actor {
	return Actor{Kind: ActorKindHuman, ID: id}
}

func SystemActor() Actor {
	return Actor{Kind: ActorKindSystem}
}

func (a Actor) IsSystem() bool {
	return a.Kind == ActorKindSystem
}

// String renders the actor reference stored in audit and lock-state rows.
func (a Actor) String() string {
	if a.IsSystem() {
		return "system"
	}
	return fmt.Sprintf("user:%s", a.ID)
}
