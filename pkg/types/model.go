package types

// BuildingIDDefault is used when the service runs for a single building and
// a request does not name one.
const BuildingIDDefault = "default"

// Building represents an apartment building sharing one PV installation.
type Building struct {
	ID      string `json:"id" bson:"id"`
	Name    string `json:"name" bson:"name"`
	Address string `json:"address,omitempty" bson:"address,omitempty"`
}
