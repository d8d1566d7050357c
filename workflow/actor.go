// workflow/actor.go
package workflow

import "go.mongodb.org/mongo-driver/bson/primitive"

// Actor identifies who performs an operation, for audit attribution.
type Actor struct {
	ID   primitive.ObjectID
	Name string
	Role string
}
